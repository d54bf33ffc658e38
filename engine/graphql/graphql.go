// Package graphql выполняет запросы ячеек по протоколу GraphQL поверх HTTP.
// Объект data ответа разбирается в cell.Record с сохранением порядка полей,
// поэтому первое поле выборки определяет пустоту данных.
package graphql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/x-research-team/dtx-cell/cell"
	"github.com/x-research-team/dtx-cell/engine/local"
)

// ErrUnsupportedQuery возвращается, если описание запроса не является Operation.
var ErrUnsupportedQuery = errors.New("graphql: описание запроса должно иметь тип Operation")

// Operation описывает GraphQL-операцию ячейки.
type Operation struct {
	Name     string
	Document string
}

// QueryName реализует cell.Named.
func (o Operation) QueryName() string {
	if o.Name != "" {
		return o.Name
	}
	return "graphql"
}

// Error объединяет ошибки из ответа сервера и статус HTTP.
type Error struct {
	Status   int
	Messages []string
}

func (e *Error) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("graphql: сервер вернул статус %d", e.Status)
	}
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// Client отправляет операции на один GraphQL-эндпоинт.
type Client struct {
	endpoint string
	http     *http.Client
	header   http.Header
}

// ClientOption настраивает Client.
type ClientOption func(*Client)

// WithHTTPClient задает HTTP-клиент. По умолчанию используется http.DefaultClient.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithHeader добавляет заголовок ко всем запросам.
func WithHeader(key, value string) ClientOption {
	return func(cl *Client) {
		cl.header.Add(key, value)
	}
}

// NewClient создает клиент для эндпоинта.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
		header:   make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch возвращает функцию выполнения запроса для engine/local.
func (c *Client) Fetch() local.FetchFunc[cell.Record] {
	return func(ctx context.Context, q cell.Query, opts cell.RequestOptions) (*cell.Record, error) {
		op, ok := q.(Operation)
		if !ok {
			return nil, fmt.Errorf("%w: получен %T", ErrUnsupportedQuery, q)
		}
		return c.Do(ctx, op, opts.Variables)
	}
}

// Do выполняет операцию. Отсутствующий или null объект data дает (nil, nil).
func (c *Client) Do(ctx context.Context, op Operation, vars cell.Variables) (*cell.Record, error) {
	body, err := requestBody(op, vars)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("graphql: не удалось создать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql: не удалось выполнить запрос '%s': %w", op.QueryName(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("graphql: не удалось прочитать ответ: %w", err)
	}

	return parseResponse(resp.StatusCode, raw)
}

func requestBody(op Operation, vars cell.Variables) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "query", op.Document)
	if err != nil {
		return nil, fmt.Errorf("graphql: не удалось сформировать запрос: %w", err)
	}
	if op.Name != "" {
		if body, err = sjson.SetBytes(body, "operationName", op.Name); err != nil {
			return nil, fmt.Errorf("graphql: не удалось сформировать запрос: %w", err)
		}
	}
	if len(vars) > 0 {
		if body, err = sjson.SetBytes(body, "variables", map[string]any(vars)); err != nil {
			return nil, fmt.Errorf("graphql: не удалось закодировать переменные: %w", err)
		}
	}
	return body, nil
}

func parseResponse(status int, raw []byte) (*cell.Record, error) {
	if !gjson.ValidBytes(raw) {
		if status < 200 || status >= 300 {
			return nil, &Error{Status: status}
		}
		return nil, fmt.Errorf("graphql: некорректный JSON в ответе")
	}

	res := gjson.ParseBytes(raw)
	if errs := res.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		gqlErr := &Error{Status: status}
		errs.ForEach(func(_, e gjson.Result) bool {
			gqlErr.Messages = append(gqlErr.Messages, e.Get("message").String())
			return true
		})
		return nil, gqlErr
	}
	if status < 200 || status >= 300 {
		return nil, &Error{Status: status}
	}

	data := res.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, nil
	}
	return cell.ParseRecord([]byte(data.Raw))
}
