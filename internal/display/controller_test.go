package display

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/anastasop/snapview/internal/picture"
)

const failedMsg = "picture request failed"

type reply struct {
	loc string
	err error
}

// gatedService holds every call until the test releases it.
type gatedService struct {
	mu    sync.Mutex
	n     int
	gates []chan reply
}

func (g *gatedService) gate(i int) chan reply {
	g.mu.Lock()
	defer g.mu.Unlock()
	for len(g.gates) <= i {
		g.gates = append(g.gates, make(chan reply, 1))
	}
	return g.gates[i]
}

func (g *gatedService) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func (g *gatedService) TakePicture(ctx context.Context) (string, error) {
	g.mu.Lock()
	i := g.n
	g.n++
	g.mu.Unlock()

	select {
	case r := <-g.gate(i):
		return r.loc, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// release answers call i, counting from 0.
func (g *gatedService) release(i int, loc string, err error) {
	g.gate(i) <- reply{loc, err}
}

func newObserved(t *testing.T, svc Service, opts ...Option) (*Controller, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]Option{WithLogger(zap.New(core))}, opts...)
	return New("/img1.png", svc, opts...), logs
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// pictureService serves a fixed reply on POST /take-picture.
func pictureService(t *testing.T, code int, body string) *picture.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return picture.NewClient(srv.URL+"/take-picture", picture.WithHTTPClient(srv.Client()))
}

func TestNew_InitialState(t *testing.T) {
	c := New("/img1.png", &gatedService{})
	assert.Equal(t, State{ImageLocation: "/img1.png"}, c.State())
	assert.Zero(t, c.Pending())

	assert.Panics(t, func() { New("", &gatedService{}) })
}

func TestRequestNewPicture_Success(t *testing.T) {
	c, logs := newObserved(t, pictureService(t, http.StatusOK, `{"status":"success","image":"/img2.png"}`))

	var changes []State
	c.OnChange(func(s State) { changes = append(changes, s) })

	require.True(t, c.RequestNewPicture(waitCtx(t)))
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, "/img1.png", c.State().ImageLocation, "state changes only when the result is resolved")

	require.NoError(t, c.Wait(waitCtx(t)))
	assert.Equal(t, "/img2.png", c.State().ImageLocation)
	assert.Equal(t, []State{{ImageLocation: "/img2.png"}}, changes)
	assert.Zero(t, logs.FilterMessage(failedMsg).Len())
}

func TestRequestNewPicture_Failures(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		kind    string
		message string
	}{
		{"explicit error", http.StatusOK, `{"status":"error","message":"camera offline"}`, "application", "camera offline"},
		{"empty object", http.StatusOK, `{}`, "protocol", ""},
		{"invalid json", http.StatusOK, `{"status":`, "protocol", ""},
		{"success without image", http.StatusOK, `{"status":"success"}`, "protocol", ""},
		{"server error", http.StatusInternalServerError, `Internal Server Error`, "protocol", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, logs := newObserved(t, pictureService(t, tt.code, tt.body))
			c.OnChange(func(State) { t.Error("state must not change") })

			require.True(t, c.RequestNewPicture(waitCtx(t)))
			require.NoError(t, c.Wait(waitCtx(t)))

			assert.Equal(t, "/img1.png", c.State().ImageLocation)
			entries := logs.FilterMessage(failedMsg).AllUntimed()
			require.Len(t, entries, 1)
			assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
			fields := entries[0].ContextMap()
			assert.Equal(t, tt.kind, fields["kind"])
			if tt.message != "" {
				assert.Equal(t, tt.message, fields["message"])
			}
		})
	}
}

func TestRequestNewPicture_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/take-picture"
	srv.Close()

	c, logs := newObserved(t, picture.NewClient(endpoint))
	require.True(t, c.RequestNewPicture(waitCtx(t)))
	require.NoError(t, c.Wait(waitCtx(t)))

	assert.Equal(t, "/img1.png", c.State().ImageLocation)
	entries := logs.FilterMessage(failedMsg).AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "transport", entries[0].ContextMap()["kind"])
}

func TestRequestNewPicture_FailureKeepsPreviousSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &gatedService{}
	c, logs := newObserved(t, svc)

	c.RequestNewPicture(waitCtx(t))
	svc.release(0, "/img2.png", nil)
	require.NoError(t, c.Wait(waitCtx(t)))

	c.RequestNewPicture(waitCtx(t))
	svc.release(1, "", &picture.ApplicationError{StatusCode: 200, Message: "camera offline"})
	require.NoError(t, c.Wait(waitCtx(t)))

	assert.Equal(t, "/img2.png", c.State().ImageLocation)
	assert.Equal(t, 1, logs.FilterMessage(failedMsg).Len())
	assert.Equal(t, 2, svc.calls())
}

// issueTwo issues two calls and makes sure the service saw them in issue order.
func issueTwo(t *testing.T, c *Controller, svc *gatedService) {
	t.Helper()
	require.True(t, c.RequestNewPicture(waitCtx(t)))
	require.Eventually(t, func() bool { return svc.calls() == 1 }, time.Second, time.Millisecond)
	require.True(t, c.RequestNewPicture(waitCtx(t)))
	require.Eventually(t, func() bool { return svc.calls() == 2 }, time.Second, time.Millisecond)
}

// resolveNext resolves the next result and returns its sequence.
func resolveNext(t *testing.T, c *Controller) uint64 {
	t.Helper()
	select {
	case r := <-c.Results():
		c.Resolve(r)
		return r.Seq
	case <-waitCtx(t).Done():
		t.Fatal("no result")
		return 0
	}
}

func TestOrdering_ArrivalLastResolvedWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &gatedService{}
	c, _ := newObserved(t, svc, WithOrdering(Arrival))
	issueTwo(t, c, svc)

	svc.release(1, "/second.png", nil)
	assert.EqualValues(t, 2, resolveNext(t, c))
	svc.release(0, "/first.png", nil)
	assert.EqualValues(t, 1, resolveNext(t, c))

	assert.Equal(t, "/first.png", c.State().ImageLocation)
	assert.Zero(t, c.Pending())
}

func TestOrdering_SequencedLastIssuedWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &gatedService{}
	c, logs := newObserved(t, svc, WithOrdering(Sequenced))
	issueTwo(t, c, svc)

	svc.release(1, "/second.png", nil)
	resolveNext(t, c)
	svc.release(0, "/first.png", nil)
	resolveNext(t, c)

	assert.Equal(t, "/second.png", c.State().ImageLocation)
	assert.Equal(t, 1, logs.FilterMessage("stale picture discarded").Len())
	assert.Zero(t, logs.FilterMessage(failedMsg).Len())
}

func TestOrdering_SequencedInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &gatedService{}
	c, _ := newObserved(t, svc)
	issueTwo(t, c, svc)

	svc.release(0, "/first.png", nil)
	resolveNext(t, c)
	assert.Equal(t, "/first.png", c.State().ImageLocation)
	svc.release(1, "/second.png", nil)
	resolveNext(t, c)
	assert.Equal(t, "/second.png", c.State().ImageLocation)
}

func TestOrdering_SingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &gatedService{}
	c, _ := newObserved(t, svc, WithOrdering(SingleFlight))

	require.True(t, c.RequestNewPicture(waitCtx(t)))
	assert.True(t, c.Status().Busy)
	assert.False(t, c.RequestNewPicture(waitCtx(t)))

	svc.release(0, "/img2.png", nil)
	require.NoError(t, c.Wait(waitCtx(t)))
	assert.False(t, c.Status().Busy)
	assert.Equal(t, "/img2.png", c.State().ImageLocation)
	assert.Equal(t, 1, svc.calls())

	assert.True(t, c.RequestNewPicture(waitCtx(t)))
	svc.release(1, "/img3.png", nil)
	require.NoError(t, c.Wait(waitCtx(t)))
	assert.Equal(t, "/img3.png", c.State().ImageLocation)
}

func TestResolve_EmptyLocator(t *testing.T) {
	c, logs := newObserved(t, &gatedService{})
	assert.False(t, c.Resolve(Result{Seq: 1}))
	assert.Equal(t, "/img1.png", c.State().ImageLocation)
	assert.Equal(t, 1, logs.FilterMessage(failedMsg).Len())
}

func TestRequestNewPicture_CanceledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &gatedService{}
	c, _ := newObserved(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, c.RequestNewPicture(ctx))
	cancel()

	wctx, wcancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer wcancel()
	err := c.Wait(wctx)
	if err != nil {
		// the goroutine dropped its result
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	}
	assert.Equal(t, "/img1.png", c.State().ImageLocation)
}

func TestParseOrdering(t *testing.T) {
	for _, o := range []Ordering{Arrival, Sequenced, SingleFlight} {
		got, err := ParseOrdering(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err := ParseOrdering("random")
	assert.Error(t, err)
}
