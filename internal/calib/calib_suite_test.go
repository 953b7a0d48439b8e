package calib_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ifd/internal/oracle"
)

func TestCalib(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Calib Suite")
}

// recorder is a Logger that keeps every line.
type recorder struct {
	mu         sync.Mutex
	diagnostic []string
	console    []string
	warn       []string
}

func (r *recorder) Diagnostic(msg string, args ...any) { r.add(&r.diagnostic, msg, args) }
func (r *recorder) Console(msg string, args ...any)    { r.add(&r.console, msg, args) }
func (r *recorder) Warn(msg string, args ...any)       { r.add(&r.warn, msg, args) }

func (r *recorder) add(dst *[]string, msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*dst = append(*dst, fmt.Sprint(append([]any{msg}, args...)...))
}

// stub is an Oracle backed by a function. It counts calls and remembers
// every request.
type stub struct {
	fn       func(req oracle.Request) (oracle.Response, error)
	calls    int
	requests []oracle.Request
}

func (s *stub) Evaluate(ctx context.Context, req oracle.Request) (oracle.Response, error) {
	if err := ctx.Err(); err != nil {
		return oracle.Response{}, err
	}
	s.calls++
	s.requests = append(s.requests, req)
	return s.fn(req)
}
