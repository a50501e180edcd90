package trafficlight

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"
)

type HTTPHookConfig struct {
	URL                string            `yaml:"url"`
	Method             string            `yaml:"method"`
	Headers            map[string]string `yaml:"headers"`
	Body               string            `yaml:"body"`
	ExpectCode         string            `yaml:"expect_code"`
	NoCheckCertificate bool              `yaml:"no_check_certificate"`
}

// HTTPHook notifies a URL when the consumer observes a phase.
// Body is a text/template executed with .Phase and .Crossing.
type HTTPHook struct {
	URL                string
	Method             string
	Headers            map[string]string
	Body               *template.Template
	ExpectCodeFunc     func(code int) bool
	Timeout            time.Duration
	NoCheckCertificate bool

	name string
}

type httpHookVars struct {
	Phase    Phase
	Crossing int
}

func NewHTTPHook(cfg *HookConfig) (*HTTPHook, error) {
	h := &HTTPHook{
		name:               cfg.Name,
		Method:             cfg.HTTP.Method,
		Timeout:            cfg.Timeout,
		NoCheckCertificate: cfg.HTTP.NoCheckCertificate,
		Headers:            cfg.HTTP.Headers,
	}
	u, err := url.Parse(cfg.HTTP.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", cfg.HTTP.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %s: scheme must be http or https", cfg.HTTP.URL)
	}
	h.URL = u.String()

	h.Body, err = template.New(cfg.Name).Parse(cfg.HTTP.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid body template: %w", err)
	}
	// default
	if h.Method == "" {
		h.Method = http.MethodPost
	}
	if h.Timeout == 0 {
		h.Timeout = DefaultHookTimeout
	}
	if cfg.HTTP.ExpectCode == "" {
		h.ExpectCodeFunc = func(code int) bool {
			return code >= 200 && code < 300
		}
	} else {
		h.ExpectCodeFunc, err = newExpectCodeFunc(cfg.HTTP.ExpectCode)
		if err != nil {
			return nil, fmt.Errorf("invalid expect_code %s: %w", cfg.HTTP.ExpectCode, err)
		}
	}
	return h, nil
}

func (h *HTTPHook) Name() string {
	return h.name
}

func (h *HTTPHook) Run(ctx context.Context) error {
	logger := newLoggerFromContext(ctx).With("name", h.name, "module", "httphook")

	vars := httpHookVars{}
	vars.Phase, _ = ctx.Value(phaseKey).(Phase)
	vars.Crossing, _ = ctx.Value(crossingKey).(int)
	var body strings.Builder
	if err := h.Body.Execute(&body, vars); err != nil {
		return fmt.Errorf("hook %s: render body: %w", h.name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, strings.NewReader(body.String()))
	if err != nil {
		return err
	}
	for name, value := range h.Headers {
		req.Header.Set(name, value)
	}
	req.Header.Set("User-Agent", "trafficlight/"+Version)
	req.Header.Set("X-Trafficlight-Phase", vars.Phase.String())

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: h.NoCheckCertificate},
	}
	client := &http.Client{Transport: tr}

	logger.Debug(fmt.Sprintf("http request %s %s", req.Method, req.URL))
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("hook %s: http request failed: %w", h.name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if !h.ExpectCodeFunc(resp.StatusCode) {
		return fmt.Errorf("hook %s: expect code not match: %d", h.name, resp.StatusCode)
	}
	return nil
}

// newExpectCodeFunc parses a string of comma separated HTTP status codes and
// returns a function that checks if the given code is in the list.
// e.g. "200,201,202-204,300-399"
func newExpectCodeFunc(codes string) (func(code int) bool, error) {
	ranges := strings.Split(codes, ",")
	var parsedRanges []struct{ lower, upper int }

	for _, r := range ranges {
		r = strings.TrimSpace(r)
		bounds := strings.Split(r, "-")
		for i := range bounds {
			bounds[i] = strings.TrimSpace(bounds[i])
		}
		switch len(bounds) {
		case 1:
			code, err := strconv.Atoi(bounds[0])
			if err != nil {
				return nil, errors.New("invalid code: " + bounds[0])
			}
			parsedRanges = append(parsedRanges, struct{ lower, upper int }{code, code})
		case 2:
			lower, err1 := strconv.Atoi(bounds[0])
			upper, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil {
				return nil, errors.New("invalid range: " + r)
			}
			parsedRanges = append(parsedRanges, struct{ lower, upper int }{lower, upper})
		default:
			return nil, errors.New("invalid format: " + r)
		}
	}

	return func(code int) bool {
		for _, r := range parsedRanges {
			if r.lower <= code && code <= r.upper {
				return true
			}
		}
		return false
	}, nil
}
