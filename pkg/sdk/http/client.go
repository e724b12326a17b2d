package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	client *resty.Client
}

// ClientOptions 客户端参数
type ClientOptions struct {
	Timeout    time.Duration // 整体请求超时，默认 10s
	RetryCount int           // 重试次数，默认不重试
	ProxyURL   string        // 代理（为空时 resty 读取 HTTP_PROXY 等环境变量）
	UserAgent  string
}

func NewClient(host string, opts ClientOptions) *Client {
	host = strings.TrimSuffix(host, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(host).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流：优先使用 Retry-After 头
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 2 * time.Second, nil
			}
			return 0, nil
		})
	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Client{client: client}
}

type RequestOptions struct {
	Headers map[string]string
	Data    any
	Params  map[string]any
}

// 仅设置本次请求的默认 Header（不要再改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	return r
}

func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions, out any) (*resty.Response, error) {
	rc := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if opt.Params != nil {
			rc.SetQueryParamsFromValues(toValues(opt.Params))
		}
		if opt.Data != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}
	if out != nil {
		rc.SetResult(out)
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		return rc.Get(endpoint)
	case http.MethodPost:
		return rc.Post(endpoint)
	case http.MethodDelete:
		return rc.Delete(endpoint)
	case http.MethodPut:
		return rc.Put(endpoint)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
}

// GetJSON GET 请求并把 2xx 响应解码到 out
func (c *Client) GetJSON(ctx context.Context, endpoint string, params map[string]any, out any) error {
	var opt *RequestOptions
	if params != nil {
		opt = &RequestOptions{Params: params}
	}
	resp, err := c.DoRequest(ctx, http.MethodGet, endpoint, opt, nil)
	if err := ParseHTTPError(resp, err); err != nil {
		return errors.Wrapf(err, "GET %s", endpoint)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "decode %s", endpoint)
	}
	return nil
}

func toValues(m map[string]any) map[string][]string {
	v := make(map[string][]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case []string:
			v[k] = t
		default:
			v[k] = []string{fmt.Sprint(val)}
		}
	}
	return v
}

// HTTPError 非 2xx 响应
type HTTPError struct {
	StatusCode int
	Status     string
	Body       any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http non-2xx: %d %v", e.StatusCode, e.Body)
}

// ParseHTTPError 把传输错误和非 2xx 响应统一成 error
func ParseHTTPError(resp *resty.Response, err error) error {
	if err != nil {
		return errors.WithStack(err)
	}
	if resp == nil {
		return errors.New("empty response")
	}
	if resp.IsSuccess() {
		return nil
	}
	var body any
	b := resp.Body()
	_ = json.Unmarshal(b, &body)
	if body == nil {
		body = string(b)
	}
	return errors.WithStack(&HTTPError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       body,
	})
}
