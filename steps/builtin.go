package steps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Keys under which HTTP results are kept in the suite store.
const (
	KeyStatusCode = "steps.status_code"
	KeyBody       = "steps.body"
)

// Registrar accepts step implementations.
type Registrar interface {
	RegisterStep(pattern string, unit *types.UnitDescriptor) error
}

// Library binds the built-in steps.
type Library struct {
	Shell  Shell
	Client *http.Client
}

type builtin struct {
	pattern string
	body    func(ctx context.Context, tc types.TestContext, args []string) error
}

// Register binds every built-in step into reg.
func (l Library) Register(reg Registrar) error {
	if l.Client == nil {
		l.Client = &http.Client{Timeout: 30 * time.Second}
	}
	for _, b := range l.builtins() {
		body := b.body
		unit := &types.UnitDescriptor{
			Name: b.pattern,
			Body: types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
				return body(ctx, tc, args(tc))
			}),
		}
		if err := reg.RegisterStep(b.pattern, unit); err != nil {
			return fmt.Errorf("failed to register step %q: %w", b.pattern, err)
		}
	}
	return nil
}

func (l Library) builtins() []builtin {
	return []builtin{
		{`I run ""`, func(ctx context.Context, tc types.TestContext, a []string) error {
			_, err := l.Shell.Run(ctx, tc, a[0], false)
			return err
		}},
		{`I run "" allowing failure`, func(ctx context.Context, tc types.TestContext, a []string) error {
			_, err := l.Shell.Run(ctx, tc, a[0], true)
			return err
		}},
		{`the exit code should be ""`, func(_ context.Context, tc types.TestContext, a []string) error {
			want, err := strconv.Atoi(a[0])
			if err != nil {
				return fmt.Errorf("invalid exit code %q: %w", a[0], err)
			}
			got, ok := tc.Get(KeyExitCode)
			if !ok {
				return types.Throw(types.KindAssertion, "no command has been run")
			}
			if got != want {
				return types.Throw(types.KindAssertion, "expected exit code %d, got %v", want, got)
			}
			return nil
		}},
		{`the output should contain ""`, func(_ context.Context, tc types.TestContext, a []string) error {
			out, _ := tc.Get(KeyOutput)
			s, _ := out.(string)
			if !strings.Contains(s, a[0]) {
				return types.Throw(types.KindAssertion, "output does not contain %q", a[0])
			}
			return nil
		}},
		{`I wait ""`, func(ctx context.Context, _ types.TestContext, a []string) error {
			d, err := time.ParseDuration(a[0])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", a[0], err)
			}
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		{`I set "" to ""`, func(_ context.Context, tc types.TestContext, a []string) error {
			tc.Set(a[0], a[1])
			return nil
		}},
		{`the value "" should be ""`, func(_ context.Context, tc types.TestContext, a []string) error {
			got, ok := tc.Get(a[0])
			if !ok {
				return types.Throw(types.KindAssertion, "value %q is not set", a[0])
			}
			if fmt.Sprint(got) != a[1] {
				return types.Throw(types.KindAssertion, "value %q is %v, expected %s", a[0], got, a[1])
			}
			return nil
		}},
		{`I request ""`, func(ctx context.Context, tc types.TestContext, a []string) error {
			return l.request(ctx, tc, a[0])
		}},
		{`the response status should be ""`, func(_ context.Context, tc types.TestContext, a []string) error {
			got, ok := tc.Get(KeyStatusCode)
			if !ok {
				return types.Throw(types.KindAssertion, "no request has been made")
			}
			if fmt.Sprint(got) != a[0] {
				return types.Throw(types.KindAssertion, "expected status %s, got %v", a[0], got)
			}
			return nil
		}},
	}
}

func (l Library) request(ctx context.Context, tc types.TestContext, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	tc.Set(KeyStatusCode, resp.StatusCode)
	tc.Set(KeyBody, string(body))
	tc.Logger().Debug("Request finished", "url", url, "status", resp.StatusCode)
	return nil
}

// args returns the step's quoted literals, padded so every built-in can index
// the arguments its pattern declares.
func args(tc types.TestContext) []string {
	out := make([]string, 0, 2)
	for i := 0; ; i++ {
		v, ok := tc.Param(fmt.Sprintf("arg%d", i))
		if !ok {
			break
		}
		out = append(out, v)
	}
	for len(out) < 2 {
		out = append(out, "")
	}
	return out
}
