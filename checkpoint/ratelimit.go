package checkpoint

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// limitedWriter throttles writes through a token bucket of bytes.
type limitedWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	written := 0

	for len(p) > 0 {
		n := min(len(p), lw.limiter.Burst())
		if err := lw.limiter.WaitN(lw.ctx, n); err != nil {
			return written, err
		}

		m, err := lw.w.Write(p[:n])
		written += m

		if err != nil {
			return written, err
		}

		p = p[n:]
	}

	return written, nil
}

// limitedReader throttles reads through a token bucket of bytes.
type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if len(p) > lr.limiter.Burst() {
		p = p[:lr.limiter.Burst()]
	}

	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := lr.limiter.WaitN(lr.ctx, n); werr != nil {
			return n, werr
		}
	}

	return n, err
}

func newLimiter(bytesPerSec, burst int) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}

	if burst <= 0 {
		burst = bytesPerSec
	}

	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

func limitWriter(ctx context.Context, w io.Writer, l *rate.Limiter) io.Writer {
	if l == nil {
		return w
	}

	return &limitedWriter{ctx: ctx, w: w, limiter: l}
}

func limitReader(ctx context.Context, r io.Reader, l *rate.Limiter) io.Reader {
	if l == nil {
		return r
	}

	return &limitedReader{ctx: ctx, r: r, limiter: l}
}
