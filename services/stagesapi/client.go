package stagesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
)

const (
	apiPrefix     = "/stages"
	planifPrefix  = apiPrefix + "/planification"
	maxErrBodyLen = 1 << 16
)

// Client talks to the stages REST API. It is the planification repository and the authenticator of the portal.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     core.Logger
}

var (
	_ planning.Repository = (*Client)(nil)
	_ user.Authenticator  = (*Client)(nil)
)

func NewClient(baseURL string, httpClient *http.Client, logger core.Logger) *Client {
	if httpClient == nil {
		httpClient = DefaultHTTPClient(0)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// DefaultHTTPClient returns the client used against the stages API, 10s timeout unless specified.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

type tokenKey struct{}

// WithToken returns a copy of ctx whose API calls are authenticated with token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx, "" if none.
func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// Auth

type loginResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, creds user.Credentials) (user.Session, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		if rErr, ok := core.AsRemoteError(err); ok && (rErr.Status == http.StatusUnauthorized || rErr.Status == http.StatusForbidden) {
			return user.Session{}, user.ErrAuthenticationFailed
		}
		return user.Session{}, err
	}
	if resp.Token == "" || resp.User.ID == 0 {
		return user.Session{}, errors.New("login response missing token or user")
	}
	return user.Session{Token: resp.Token, User: resp.User}, nil
}

// Planifications

func (c *Client) QueryAllPlanifications(ctx context.Context) ([]planning.Planification, error) {
	var planifs []planning.Planification
	err := c.do(ctx, http.MethodGet, planifPrefix+"/all", nil, &planifs)
	return planifs, err
}

func (c *Client) QueryPlanificationsByEncadrant(ctx context.Context, encadrantID int64) ([]planning.Planification, error) {
	var planifs []planning.Planification
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/encadrant/%d", planifPrefix, encadrantID), nil, &planifs)
	return planifs, err
}

func (c *Client) QuerySlotsByEtudiant(ctx context.Context, etudiantID int64) ([]planning.StudentSlot, error) {
	var slots []planning.StudentSlot
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/etudiant/%d", planifPrefix, etudiantID), nil, &slots)
	return slots, err
}

func (c *Client) QueryDetails(ctx context.Context, planifID int64) ([]planning.Detail, error) {
	var details []planning.Detail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d/details", planifPrefix, planifID), nil, &details)
	return details, err
}

type createPlanifRequest struct {
	DateSoutenance string `json:"dateSoutenance"`
	EncadrantID    int64  `json:"encadrantId"`
	ClassGroupID   int64  `json:"classGroupId"`
	AnneeScolaire  string `json:"anneeScolaire,omitempty"`
}

func (c *Client) CreatePlanification(ctx context.Context, np planning.NewPlanification) (planning.Planification, error) {
	req := createPlanifRequest{
		DateSoutenance: np.DateSoutenance,
		EncadrantID:    np.EncadrantID,
		ClassGroupID:   np.ClassGroupID,
		AnneeScolaire:  np.AnneeScolaire,
	}
	var planif planning.Planification
	err := c.do(ctx, http.MethodPost, planifPrefix+"/create", req, &planif)
	return planif, err
}

func (c *Client) AddDetail(ctx context.Context, planifID int64, nd planning.NewDetail) (planning.Detail, error) {
	var detail planning.Detail
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%d/addDetail", planifPrefix, planifID), nd, &detail)
	return detail, err
}

func (c *Client) UpdateDetail(ctx context.Context, detailID int64, ud planning.UpdateDetail) (planning.Detail, error) {
	var detail planning.Detail
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/details/%d", planifPrefix, detailID), ud, &detail)
	return detail, err
}

func (c *Client) DeleteDetail(ctx context.Context, detailID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/details/%d", planifPrefix, detailID), nil, nil)
}

func (c *Client) ExportPlanificationsByEncadrant(ctx context.Context, encadrantID int64) (planning.File, error) {
	return c.download(ctx, fmt.Sprintf("%s/encadrant/%d/export", planifPrefix, encadrantID))
}

func (c *Client) ExportPlanification(ctx context.Context, planifID int64) (planning.File, error) {
	return c.download(ctx, fmt.Sprintf("%s/%d/export", planifPrefix, planifID))
}

func (c *Client) QueryEtudiantsByClassGroup(ctx context.Context, classGroupID int64) ([]planning.Etudiant, error) {
	var students []planning.Etudiant
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/admin/class-groups/%d/etudiants", apiPrefix, classGroupID), nil, &students)
	return students, err
}

// Transport

// do sends a JSON request and decodes the JSON response into out (when not nil).
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	resp, err := c.send(ctx, method, path, in, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return remoteErr(ctx, 0, errors.Wrap(err, "reading response"))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewRemoteError(resp.StatusCode, core.MsgGenericError, errors.Wrap(err, "decoding response"))
	}
	return nil
}

// download fetches a binary document, named after the Content-Disposition header when present.
func (c *Client) download(ctx context.Context, path string) (planning.File, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "*/*")
	if err != nil {
		return planning.File{}, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return planning.File{}, remoteErr(ctx, 0, errors.Wrap(err, "reading download"))
	}
	return planning.File{
		Name:        filenameFrom(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// send performs the request and turns every non-2xx answer into a core.RemoteError.
func (c *Client) send(ctx context.Context, method, path string, in interface{}, accept string) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", accept)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.debug(fmt.Sprintf("stagesapi: %s %s", method, path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, remoteErr(ctx, 0, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodyLen))
	err = fmt.Errorf("%s %s: %s", method, path, resp.Status)
	return nil, remoteErr(ctx, resp.StatusCode, err, data...)
}

type errorBody struct {
	Message string `json:"message"`
}

// remoteErr maps a failed call to its user-facing message. A cancelled context is passed through as is.
func remoteErr(ctx context.Context, status int, err error, body ...byte) error {
	if ctxErr := ctx.Err(); ctxErr != nil && status == 0 {
		return errors.Wrap(ctxErr, err.Error())
	}

	var msg string
	switch {
	case status == 0:
		msg = core.MsgServerUnreachable
	case status == http.StatusUnauthorized:
		msg = core.MsgSessionExpired
	default:
		var eb errorBody
		if len(body) > 0 && json.Unmarshal(body, &eb) == nil && strings.TrimSpace(eb.Message) != "" {
			msg = eb.Message
		} else {
			msg = core.MsgGenericError
		}
	}
	return core.NewRemoteError(status, msg, err)
}

func filenameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func (c *Client) debug(msg string) {
	if c.logger != nil {
		c.logger.Debug(msg)
	}
}
