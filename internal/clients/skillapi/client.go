package skillapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/editor"
	"github.com/yungbote/skillgraph-backend/internal/http/response"
	"github.com/yungbote/skillgraph-backend/internal/pkg/httpx"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// Client talks to the skill graph HTTP API. It satisfies editor.GraphClient.
type Client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

var _ editor.GraphClient = (*Client)(nil)

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing skill api base url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &Client{
		log:  log.With("client", "SkillAPIClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// HTTPError is the raw non-2xx response. It is the Cause of the
// *domainagg.Error every failed call returns.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("skill api http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type graphResponse struct {
	CourseID string            `json:"course_id"`
	Version  int64             `json:"version"`
	Skills   []skillgraph.Node `json:"skills"`
}

type syncRequest struct {
	BaseVersion *int64                     `json:"base_version,omitempty"`
	Skills      []domainagg.SkillNodeInput `json:"skills"`
}

func (c *Client) LoadGraph(ctx context.Context, courseID string) (editor.Snapshot, error) {
	var out graphResponse
	if err := c.do(ctx, "LoadGraph", http.MethodGet, c.skillsPath(courseID), nil, &out, true); err != nil {
		return editor.Snapshot{}, err
	}
	return editor.Snapshot{Version: out.Version, Nodes: out.Skills}, nil
}

// Sync is idempotent on the server, so transient failures are retried.
func (c *Client) Sync(ctx context.Context, courseID string, baseVersion *int64, nodes []skillgraph.Node) (editor.Snapshot, error) {
	req := syncRequest{BaseVersion: baseVersion, Skills: make([]domainagg.SkillNodeInput, 0, len(nodes))}
	for _, n := range nodes {
		req.Skills = append(req.Skills, NodeInput(n))
	}
	var out graphResponse
	if err := c.do(ctx, "Sync", http.MethodPost, c.skillsPath(courseID)+"/sync", req, &out, true); err != nil {
		return editor.Snapshot{}, err
	}
	return editor.Snapshot{Version: out.Version, Nodes: out.Skills}, nil
}

// Connect is not retried: a replay after a lost response would be rejected as a duplicate.
func (c *Client) Connect(ctx context.Context, courseID, skillID, prerequisiteID string) error {
	body := map[string]string{"prerequisite_id": prerequisiteID}
	return c.do(ctx, "Connect", http.MethodPost, c.skillPath(courseID, skillID)+"/prerequisites", body, nil, false)
}

func (c *Client) Disconnect(ctx context.Context, courseID, skillID, prerequisiteID string) error {
	path := c.skillPath(courseID, skillID) + "/prerequisites/" + url.PathEscape(prerequisiteID)
	return c.do(ctx, "Disconnect", http.MethodDelete, path, nil, nil, true)
}

func (c *Client) UpdatePosition(ctx context.Context, courseID, skillID string, x, y int) error {
	body := map[string]int{"position_x": x, "position_y": y}
	return c.do(ctx, "UpdatePosition", http.MethodPatch, c.skillPath(courseID, skillID)+"/position", body, nil, true)
}

func (c *Client) UpdateAttributes(ctx context.Context, courseID, skillID string, patch domainagg.SkillPatch) error {
	return c.do(ctx, "UpdateAttributes", http.MethodPut, c.skillPath(courseID, skillID), patch, nil, true)
}

// NodeInput converts a working-copy node into the sync payload shape.
func NodeInput(n skillgraph.Node) domainagg.SkillNodeInput {
	xp := n.XPReward
	prereqs := append([]string{}, n.Prerequisites...)
	return domainagg.SkillNodeInput{
		ID:                  n.ID,
		Name:                n.Name,
		Description:         n.Description,
		Category:            string(n.Category),
		Content:             n.Content,
		Difficulty:          string(n.Difficulty),
		XPReward:            &xp,
		RemedialMaterialURL: n.RemedialMaterialURL,
		PositionX:           n.PositionX,
		PositionY:           n.PositionY,
		Prerequisites:       prereqs,
	}
}

func (c *Client) skillsPath(courseID string) string {
	return "/api/courses/" + url.PathEscape(courseID) + "/skills"
}

func (c *Client) skillPath(courseID, skillID string) string {
	return c.skillsPath(courseID) + "/" + url.PathEscape(skillID)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, retry bool) error {
	backoff := c.cfg.Backoff
	maxRetries := c.cfg.MaxRetries
	if !retry {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return domainagg.Wrap(domainagg.CodeRetryable, "SkillAPI."+op, ctx.Err())
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil || len(raw) == 0 {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return domainagg.NewError(domainagg.CodeInternal, "SkillAPI."+op, "decode response", fmt.Errorf("%w; raw=%s", uErr, string(raw)))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt >= maxRetries {
			return toAggregateError(op, err)
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("Skill API request retrying",
			"op", op,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return domainagg.Wrap(domainagg.CodeRetryable, "SkillAPI."+op, ctx.Err())
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
}

// toAggregateError maps a failed call onto the server's error codes so
// callers branch on domainagg codes the same way on both sides of the wire.
func toAggregateError(op string, err error) error {
	op = "SkillAPI." + op
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	var env response.ErrorEnvelope
	_ = json.Unmarshal([]byte(httpErr.Body), &env)

	code := domainagg.ErrorCode(env.Error.Code)
	if !knownCode(code) {
		code = codeForStatus(httpErr.StatusCode)
	}
	msg := env.Error.Message
	if msg == "" {
		msg = http.StatusText(httpErr.StatusCode)
	}
	return &domainagg.Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Reason:  env.Error.Reason,
		Fields:  env.Error.Fields,
		Cause:   httpErr,
	}
}

func knownCode(code domainagg.ErrorCode) bool {
	switch code {
	case domainagg.CodeValidation, domainagg.CodeNotFound, domainagg.CodeForbidden, domainagg.CodeConflict,
		domainagg.CodeInvariantViolation, domainagg.CodePreconditionFailed, domainagg.CodeRetryable, domainagg.CodeInternal:
		return true
	default:
		return false
	}
}

func codeForStatus(status int) domainagg.ErrorCode {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return domainagg.CodeValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domainagg.CodeForbidden
	case status == http.StatusNotFound:
		return domainagg.CodeNotFound
	case status == http.StatusConflict:
		return domainagg.CodeConflict
	case status == http.StatusPreconditionFailed:
		return domainagg.CodePreconditionFailed
	case httpx.IsRetryableHTTPStatus(status):
		return domainagg.CodeRetryable
	default:
		return domainagg.CodeInternal
	}
}
