package topup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alovak/topup-playground/internal/failure"
	"github.com/alovak/topup-playground/internal/transport"
	"github.com/alovak/topup-playground/topup/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type sendCall struct {
	req    transport.Request
	policy transport.Policy
	ctxErr error
}

type sendResult struct {
	body string
	err  error
}

// stubSender replays results in order and records every call.
type stubSender struct {
	mu      sync.Mutex
	results []sendResult
	calls   []sendCall
}

func (s *stubSender) Send(ctx context.Context, req transport.Request, policy transport.Policy) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sendCall{req: req, policy: policy, ctxErr: ctx.Err()})
	if len(s.results) == 0 {
		return "", errors.New("unexpected send")
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.body, r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest(provider string) models.TransactionRequest {
	return models.TransactionRequest{
		Provider:   provider,
		Service:    "02",
		Sequence:   "134985",
		Batch:      "260129",
		Amount:     decimal.RequireFromString("2.00"),
		Cashier:    "5555",
		CashierKey: "5555",
		TerminalID: "10957975",
		MerchantID: "015912000100004",
		Phone:      "0962562205",
	}
}

var (
	errTimeout = &failure.Error{Kind: failure.KindTimeout, Attempts: 3, Err: context.DeadlineExceeded}
	errStatus  = &failure.Error{Kind: failure.KindHTTPStatus, Attempts: 3, StatusCode: 500}
)

func TestProcess_Approved(t *testing.T) {
	sender := &stubSender{results: []sendResult{{body: "<r><TransaccionResult>000</TransaccionResult></r>"}}}
	cfg := DefaultConfig()
	svc := NewService(sender, cfg, testLogger())

	out, err := svc.Process(context.Background(), testRequest("CLARO"))
	require.NoError(t, err)
	require.Equal(t, models.TransactionOutcome{Success: true, ResultBody: "<r><TransaccionResult>000</TransaccionResult></r>"}, out)

	require.Len(t, sender.calls, 1)
	call := sender.calls[0]
	require.Equal(t, cfg.Primary, call.policy)
	require.Equal(t, cfg.Endpoint, call.req.Endpoint)
	require.Equal(t, "text/xml; charset=utf-8", call.req.Header.Get("Content-Type"))
	require.Equal(t, "http://tempuri.org/Transaccion", call.req.Header.Get("SOAPAction"))
	require.Contains(t, call.req.Body, "<tipoTransaccion>02</tipoTransaccion>")
	require.Contains(t, call.req.Body, "<monto>000000000200</monto>")
}

func TestProcess_ClassifierFromConfig(t *testing.T) {
	body := "<r><TransaccionResult> 000 </TransaccionResult></r>"

	cfg := DefaultConfig()
	out, err := NewService(&stubSender{results: []sendResult{{body: body}}}, cfg, testLogger()).
		Process(context.Background(), testRequest("CLARO"))
	require.NoError(t, err)
	require.False(t, out.Success)

	cfg.Classifier = ClassifierXML
	out, err = NewService(&stubSender{results: []sendResult{{body: body}}}, cfg, testLogger()).
		Process(context.Background(), testRequest("CLARO"))
	require.NoError(t, err)
	require.True(t, out.Success)
}

func TestProcess_BusinessFailureIsNotReversed(t *testing.T) {
	body := "<TransaccionResult>014</TransaccionResult>"
	sender := &stubSender{results: []sendResult{{body: body}}}
	svc := NewService(sender, DefaultConfig(), testLogger())

	out, err := svc.Process(context.Background(), testRequest("CLARO"))
	require.NoError(t, err)
	require.Equal(t, models.TransactionOutcome{Success: false, ResultBody: body, ReversalAttempted: false}, out)
	require.Len(t, sender.calls, 1)
}

func TestProcess_TimeoutReversed(t *testing.T) {
	sender := &stubSender{results: []sendResult{{err: errTimeout}, {body: ">OK<"}}}
	cfg := DefaultConfig()
	svc := NewService(sender, cfg, testLogger())

	req := testRequest("CLARO")
	out, err := svc.Process(context.Background(), req)
	require.NoError(t, err)
	require.False(t, out.Success)
	require.True(t, out.ReversalAttempted)
	require.Equal(t, errTimeout.Error(), out.ResultBody)

	require.Len(t, sender.calls, 2)
	rev := sender.calls[1]
	require.Equal(t, cfg.Reversal, rev.policy)
	require.Contains(t, rev.req.Body, "<tipoTransaccion>04</tipoTransaccion>")
	require.Contains(t, rev.req.Body, "<secuencial>"+req.Sequence+"</secuencial>")
	require.Contains(t, rev.req.Body, "<lote>"+req.Batch+"</lote>")
	require.Contains(t, rev.req.Body, "<monto>000000000200</monto>")
}

func TestProcess_ReversalNotApprovedStillReportsOriginalFailure(t *testing.T) {
	sender := &stubSender{results: []sendResult{{err: errTimeout}, {body: "<TransaccionResult>099</TransaccionResult>"}}}
	svc := NewService(sender, DefaultConfig(), testLogger())

	out, err := svc.Process(context.Background(), testRequest("movistar"))
	require.NoError(t, err)
	require.Equal(t, models.TransactionOutcome{ResultBody: errTimeout.Error(), ReversalAttempted: true}, out)
}

func TestProcess_ReversalFailed(t *testing.T) {
	revErr := &failure.Error{Kind: failure.KindNetwork, Attempts: 2, Err: errors.New("connection refused")}
	sender := &stubSender{results: []sendResult{{err: errTimeout}, {err: revErr}}}
	svc := NewService(sender, DefaultConfig(), testLogger())

	out, err := svc.Process(context.Background(), testRequest("CNT"))
	require.NoError(t, err)
	require.False(t, out.Success)
	require.True(t, out.ReversalAttempted)
	require.Equal(t, errTimeout.Error()+"; reversal also failed: "+revErr.Error(), out.ResultBody)
}

func TestProcess_IneligibleProviderSurfacesError(t *testing.T) {
	sender := &stubSender{results: []sendResult{{err: errTimeout}}}
	svc := NewService(sender, DefaultConfig(), testLogger())

	out, err := svc.Process(context.Background(), testRequest("AGUA-EMPRESA"))
	require.Error(t, err)
	require.True(t, failure.IsTimeout(err))
	require.False(t, out.ReversalAttempted)
	require.Len(t, sender.calls, 1)
}

func TestProcess_NonTimeoutFailureSurfacesError(t *testing.T) {
	sender := &stubSender{results: []sendResult{{err: errStatus}}}
	svc := NewService(sender, DefaultConfig(), testLogger())

	out, err := svc.Process(context.Background(), testRequest("CLARO"))
	require.Error(t, err)
	require.Equal(t, failure.KindHTTPStatus, failure.KindOf(err))
	require.Equal(t, models.TransactionOutcome{}, out)
	require.Len(t, sender.calls, 1)
}

func TestProcess_ValidationFailureSendsNothing(t *testing.T) {
	sender := &stubSender{}
	svc := NewService(sender, DefaultConfig(), testLogger())

	for _, mutate := range []func(*models.TransactionRequest){
		func(r *models.TransactionRequest) { r.Phone = "12345" },
		func(r *models.TransactionRequest) { r.Phone = "099999999a" },
		func(r *models.TransactionRequest) { r.Amount = decimal.Zero },
		func(r *models.TransactionRequest) { r.Amount = decimal.RequireFromString("0.004") },
		func(r *models.TransactionRequest) { r.Amount = decimal.RequireFromString("10000000000") },
	} {
		req := testRequest("CLARO")
		mutate(&req)
		_, err := svc.Process(context.Background(), req)
		require.Error(t, err)
		require.True(t, failure.IsValidation(err), "got %v", err)
	}
	require.Empty(t, sender.calls)
}

func TestProcess_ReversalIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sender := &cancelingSender{cancel: cancel}
	svc := NewService(sender, DefaultConfig(), testLogger())

	out, err := svc.Process(ctx, testRequest("TUENTI"))
	require.NoError(t, err)
	require.True(t, out.ReversalAttempted)
	require.Len(t, sender.ctxErrs, 2)
	require.NoError(t, sender.ctxErrs[1])
}

// cancelingSender cancels the caller context when the first send times out.
type cancelingSender struct {
	cancel  context.CancelFunc
	ctxErrs []error
}

func (s *cancelingSender) Send(ctx context.Context, _ transport.Request, _ transport.Policy) (string, error) {
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if len(s.ctxErrs) == 1 {
		s.cancel()
		return "", errTimeout
	}
	return ">OK<", nil
}

func TestProcess_CustomClassifierAndPolicy(t *testing.T) {
	sender := &stubSender{results: []sendResult{{err: errStatus}, {body: "done"}}}
	svc := NewService(sender, DefaultConfig(), testLogger(),
		WithClassifier(MarkerClassifier{Markers: []string{"done"}}),
		WithReversalPolicy(reverseEverything{}),
	)

	out, err := svc.Process(context.Background(), testRequest("ANY"))
	require.NoError(t, err)
	require.True(t, out.ReversalAttempted)
}

type reverseEverything struct{}

func (reverseEverything) Eligible(string, failure.Kind) bool { return true }

// End to end through the real transport against a stub endpoint.
func TestProcess_EndToEnd_TimeoutThenReversal(t *testing.T) {
	var sales, reversals int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if strings.Contains(string(b), "<tipoTransaccion>04</tipoTransaccion>") {
			atomic.AddInt32(&reversals, 1)
			w.Write([]byte("<TransaccionResult>000</TransaccionResult>"))
			return
		}
		atomic.AddInt32(&sales, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.Primary = transport.Policy{Timeout: 30 * time.Millisecond, MaxRetries: 2, Delay: time.Millisecond}
	cfg.Reversal = transport.Policy{Timeout: time.Second, MaxRetries: 1, Delay: time.Millisecond}

	svc := NewService(transport.New(nil, testLogger()), cfg, testLogger())
	out, err := svc.Process(context.Background(), testRequest("CLARO"))
	require.NoError(t, err)
	require.False(t, out.Success)
	require.True(t, out.ReversalAttempted)
	require.EqualValues(t, 3, atomic.LoadInt32(&sales))
	require.EqualValues(t, 1, atomic.LoadInt32(&reversals))
}

func TestProcess_EndToEnd_IneligibleProvider(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.Primary = transport.Policy{Timeout: 20 * time.Millisecond, MaxRetries: 2, Delay: time.Millisecond}

	svc := NewService(transport.New(nil, testLogger()), cfg, testLogger())
	out, err := svc.Process(context.Background(), testRequest("AGUA-EMPRESA"))
	require.Error(t, err)
	require.True(t, failure.IsTimeout(err))
	require.False(t, out.ReversalAttempted)
	require.EqualValues(t, 3, atomic.LoadInt32(&hits))
}
