package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// HTTPGateway говорит с reference-сервером taskboard по REST
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPGateway(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (g *HTTPGateway) FetchAll(ctx context.Context, filter model.FilterState) ([]model.Entity, error) {
	q := url.Values{}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	for _, s := range filter.Statuses {
		q.Add("status", string(s))
	}
	for _, a := range filter.Assignees {
		q.Add("assignee", a)
	}
	for _, p := range filter.Projects {
		q.Add("project", p)
	}

	endpoint := g.baseURL + "/api/entities"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var items []model.Entity
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (g *HTTPGateway) Create(ctx context.Context, patch model.Patch) (model.Entity, error) {
	var e model.Entity
	err := g.do(ctx, http.MethodPost, g.baseURL+"/api/entities", patchBody(patch), &e)
	return e, err
}

func (g *HTTPGateway) Update(ctx context.Context, id string, patch model.Patch) (model.Entity, error) {
	var e model.Entity
	err := g.do(ctx, http.MethodPatch, g.baseURL+"/api/entities/"+id, patchBody(patch), &e)
	return e, err
}

func (g *HTTPGateway) BulkUpdate(ctx context.Context, ids []string, patch model.Patch) ([]model.Entity, error) {
	body := patchBody(patch)
	body["ids"] = ids
	var items []model.Entity
	if err := g.do(ctx, http.MethodPost, g.baseURL+"/api/entities/bulk", body, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (g *HTTPGateway) Delete(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, g.baseURL+"/api/entities/"+id, nil, nil)
}

// patchBody кодирует только заданные поля; явный null для снятого исполнителя
func patchBody(p model.Patch) map[string]any {
	body := map[string]any{}
	if p.ID != nil {
		body["id"] = *p.ID
	}
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.Status != nil {
		body["status"] = *p.Status
	}
	if p.Priority != nil {
		body["priority"] = *p.Priority
	}
	if p.AssigneeSet {
		body["assignee_id"] = p.Assignee // nil кодируется как null
		body["assignee_set"] = true
	}
	if p.ProjectID != nil {
		body["project_id"] = *p.ProjectID
	}
	if p.Tags != nil {
		body["tags"] = *p.Tags
	}
	if p.DueDate != nil {
		body["due_date"] = *p.DueDate
	}
	if p.CompletedAt != nil {
		body["completed_at"] = *p.CompletedAt
	}
	return body
}

func (g *HTTPGateway) do(ctx context.Context, method, endpoint string, body map[string]any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrorValidation, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrorNetwork, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Таймауты и обрывы соединения - сетевой класс отказа
		return fmt.Errorf("%w: %v", ErrorNetwork, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return err
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			g.logger.Error("failed to decode response", zap.String("endpoint", endpoint), zap.Error(err))
			return fmt.Errorf("%w: decode response: %v", ErrorNetwork, err)
		}
	}
	return nil
}

// mapStatus переводит HTTP-коды сервера в четыре класса отказов
func mapStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	msg := readErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrorValidation, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrorNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrorConflict, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrorNetwork, resp.StatusCode, msg)
	}
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil || payload.Error == "" {
		return "unexpected server response"
	}
	return payload.Error
}
