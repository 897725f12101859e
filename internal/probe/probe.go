package probe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/authprobe/internal/jsonutil"
	"github.com/raysh454/authprobe/internal/logging"
	"github.com/raysh454/authprobe/internal/utils"
	"github.com/raysh454/authprobe/internal/webclient"
)

// WebSocketProber runs probes whose Kind is KindWebSocket.
type WebSocketProber interface {
	Probe(ctx context.Context, req Request) Result
}

// Config holds runner settings that apply to every probe.
type Config struct {
	// Timeout is applied to probes without their own Timeout; 0 leaves it to
	// the webclient.
	Timeout time.Duration

	// AllowInsecureHTTP accepts http:// targets. Used against local mocks.
	AllowInsecureHTTP bool
}

// Runner executes probes one at a time.
type Runner struct {
	cfg    Config
	wc     webclient.WebClient
	ws     WebSocketProber
	logger logging.Logger
}

// NewRunner builds a Runner sending HTTP probes through wc.
func NewRunner(cfg Config, wc webclient.WebClient, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Runner{
		cfg:    cfg,
		wc:     wc,
		logger: logger.With(logging.Field{Key: "component", Value: "probe"}),
	}
}

// SetWebSocketProber installs the prober used for KindWebSocket requests.
func (r *Runner) SetWebSocketProber(ws WebSocketProber) {
	r.ws = ws
}

// Probe performs req and returns its Result. It never returns an error:
// every failure is recorded on the Result.
func (r *Runner) Probe(ctx context.Context, req Request) Result {
	res := Result{Request: req, StartedAt: time.Now()}

	if req.Kind == KindWebSocket {
		if r.ws == nil {
			res.Err = ErrNoWebSocket
			r.logResult(res)
			return res
		}
		if err := validateURL(req.URL, KindWebSocket, r.cfg.AllowInsecureHTTP); err != nil {
			res.Err = fmt.Errorf("validate: %w", err)
			r.logResult(res)
			return res
		}
		if req.Timeout == 0 {
			req.Timeout = r.cfg.Timeout
		}
		out := r.ws.Probe(ctx, req)
		r.logResult(out)
		return out
	}

	wreq, err := r.buildRequest(req)
	if err != nil {
		res.Err = fmt.Errorf("validate: %w", err)
		r.logResult(res)
		return res
	}

	r.logger.Info("probe",
		logging.Field{Key: "name", Value: req.Name},
		logging.Field{Key: "method", Value: wreq.Method},
		logging.Field{Key: "url", Value: utils.MaskURL(wreq.URL)})

	resp, err := r.wc.Do(ctx, wreq)
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		res.Err = err
		r.logResult(res)
		return res
	}

	res.StatusCode = resp.StatusCode
	res.Headers = resp.Headers
	res.RawBody = string(resp.Body)
	res.Truncated = resp.Truncated
	if resp.Duration > 0 {
		res.Duration = resp.Duration
	}
	DecodeBody(&res, resp.Body)

	r.logResult(res)
	return res
}

// RunAll runs reqs in order and returns one Result per request. onResult, if
// set, is called after each probe so callers can print as they go.
func (r *Runner) RunAll(ctx context.Context, reqs []Request, onResult func(Result)) []Result {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		res := r.Probe(ctx, req)
		results = append(results, res)
		if onResult != nil {
			onResult(res)
		}
	}
	return results
}

func (r *Runner) buildRequest(req Request) (*webclient.Request, error) {
	method, err := ParseMethod(string(req.Method))
	if err != nil {
		return nil, err
	}
	if err := validateURL(req.URL, KindHTTP, r.cfg.AllowInsecureHTTP); err != nil {
		return nil, err
	}

	headers := http.Header{}
	var body []byte
	if req.Body != nil {
		body, err = jsonutil.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBodyNotSerializable, err)
		}
		headers.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		headers.Set(k, v)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = r.cfg.Timeout
	}

	return &webclient.Request{
		Method:  string(method),
		URL:     req.URL,
		Headers: headers,
		Body:    body,
		Timeout: timeout,
	}, nil
}

func (r *Runner) logResult(res Result) {
	if res.Err != nil {
		r.logger.Warn("probe failed",
			logging.Field{Key: "name", Value: res.Request.Name},
			logging.Field{Key: "url", Value: utils.MaskURL(res.Request.URL)},
			logging.Field{Key: "error", Value: res.Err.Error()})
		return
	}
	fields := []logging.Field{
		{Key: "name", Value: res.Request.Name},
		{Key: "status", Value: res.StatusCode},
		{Key: "duration", Value: res.Duration.String()},
	}
	if res.DecodeErr != nil {
		fields = append(fields, logging.Field{Key: "decode_error", Value: res.DecodeErr.Error()})
	}
	r.logger.Info("probe result", fields...)
}

// validateURL applies the target rules and checks the scheme family fits
// kind: http(s) for HTTP probes, ws(s) for websocket probes.
func validateURL(raw string, kind Kind, allowHTTP bool) error {
	if err := utils.ValidateTargetURL(raw, allowHTTP); err != nil {
		return err
	}
	scheme, _, _ := strings.Cut(raw, "://")
	ws := strings.EqualFold(scheme, "ws") || strings.EqualFold(scheme, "wss")
	if ws != (kind == KindWebSocket) {
		return fmt.Errorf("%s probe to %q: %w", kind, utils.MaskURL(raw), ErrSchemeKind)
	}
	return nil
}

// DecodeBody fills JSON, DecodeErr and Title from a raw response body.
func DecodeBody(res *Result, body []byte) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return
	}
	if !jsonutil.Valid(trimmed) {
		res.DecodeErr = fmt.Errorf("decode json: %w", ErrNotJSON)
		if looksLikeHTML(res.Headers, trimmed) {
			res.Title = htmlTitle(trimmed)
		}
		return
	}
	var parsed any
	if err := jsonutil.Unmarshal(trimmed, &parsed); err != nil {
		res.DecodeErr = fmt.Errorf("decode json: %w", err)
		return
	}
	res.JSON = parsed
}

func looksLikeHTML(h http.Header, body []byte) bool {
	if strings.Contains(strings.ToLower(h.Get("Content-Type")), "html") {
		return true
	}
	return bytes.HasPrefix(body, []byte("<"))
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
