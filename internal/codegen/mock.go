package codegen

import (
	"context"
	"io"
	"time"
)

// MockArtifact is the fixed fallback component returned when no provider
// succeeds. It is streamed character by character so callers see the same
// incremental delivery as a real vendor stream.
const MockArtifact = `import React from 'react';
import { motion } from 'framer-motion';

interface CanvasDesignProps {
  className?: string;
}

const CanvasDesign: React.FC<CanvasDesignProps> = ({ className }) => {
  return (
    <div className={` + "`" + `flex items-center justify-center min-h-screen bg-gradient-to-br from-blue-500 via-purple-500 to-pink-500 ${className}` + "`" + `}>
      <motion.div
        initial={{ opacity: 0, y: 20 }}
        animate={{ opacity: 1, y: 0 }}
        transition={{ duration: 0.6, ease: "easeOut" }}
        className="bg-white rounded-3xl shadow-2xl p-10 max-w-2xl w-full"
      >
        <motion.h1
          initial={{ opacity: 0 }}
          animate={{ opacity: 1 }}
          transition={{ delay: 0.2 }}
          className="text-4xl font-bold bg-gradient-to-r from-blue-600 to-purple-600 bg-clip-text text-transparent mb-4"
        >
          Canvas Snapshot
        </motion.h1>
        <motion.p
          initial={{ opacity: 0 }}
          animate={{ opacity: 1 }}
          transition={{ delay: 0.3 }}
          className="text-gray-600 text-lg mb-8"
        >
          This component was generated from your Adobe Express canvas.
          Configure API keys (ANTHROPIC_API_KEY or OPENAI_API_KEY) for AI-powered generation.
        </motion.p>
        <motion.div
          initial={{ opacity: 0, scale: 0.95 }}
          animate={{ opacity: 1, scale: 1 }}
          transition={{ delay: 0.4 }}
          className="space-y-4"
        >
          <motion.button
            whileHover={{ scale: 1.02, boxShadow: "0 20px 25px -5px rgba(0, 0, 0, 0.1)" }}
            whileTap={{ scale: 0.98 }}
            className="w-full bg-gradient-to-r from-blue-600 to-purple-600 text-white py-4 px-8 rounded-xl font-semibold text-lg shadow-lg"
          >
            Get Started
          </motion.button>
          <motion.button
            whileHover={{ scale: 1.02 }}
            whileTap={{ scale: 0.98 }}
            className="w-full bg-gray-100 text-gray-800 py-4 px-8 rounded-xl font-semibold text-lg border-2 border-gray-200"
          >
            Learn More
          </motion.button>
        </motion.div>
      </motion.div>
    </div>
  );
};

export default CanvasDesign;
`

// mockStream emulates streaming: one character per chunk with a fixed delay.
type mockStream struct {
	ctx   context.Context
	text  []rune
	pos   int
	delay time.Duration
}

func newMockStream(ctx context.Context, delay time.Duration) *mockStream {
	return &mockStream{ctx: ctx, text: []rune(MockArtifact), delay: delay}
}

func (s *mockStream) Next() (string, error) {
	if s.pos >= len(s.text) {
		return "", io.EOF
	}
	if s.delay > 0 {
		select {
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		case <-time.After(s.delay):
		}
	}
	ch := string(s.text[s.pos])
	s.pos++
	return ch, nil
}

func (s *mockStream) Close() error { return nil }
