// Package nautobot 提供 Nautobot API 的 HTTP 客户端。
// 位置列表走 GraphQL（一次拿全量层级引用），设备过滤走 REST filter 参数。
package nautobot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cockpit_go/internal/model"
)

// Client 是上游 Nautobot 的查询接口。
// 预览、位置层级等服务都依赖该接口，测试时用假实现替换。
type Client interface {
	// GetLocations 返回全量位置记录（未计算层级路径）。
	GetLocations(ctx context.Context) ([]model.Location, error)

	// QueryDevices 按单个字段条件查询设备。
	// operator 只接受 equals/contains，not_equals 由上层用差集表达。
	QueryDevices(ctx context.Context, field, operator, value string) ([]model.Device, error)

	// ListDevices 返回全量设备，供 not_equals 条件求差集使用。
	ListDevices(ctx context.Context) ([]model.Device, error)
}

// client 是 Client 的默认实现。
type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient 创建 Nautobot 客户端。
// timeout 为零时使用 30 秒默认值。
func NewClient(baseURL, token string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// locationsQuery 一次取回全部位置及其父引用，层级路径在服务层计算。
const locationsQuery = `query { locations { id name parent { id } } }`

// graphQLLocation 是 GraphQL 位置查询的响应结构。
type graphQLLocationResponse struct {
	Data struct {
		Locations []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Parent *struct {
				ID string `json:"id"`
			} `json:"parent"`
		} `json:"locations"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *client) GetLocations(ctx context.Context) ([]model.Location, error) {
	body, err := json.Marshal(map[string]string{"query": locationsQuery})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/graphql/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nautobot graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nautobot graphql returned status %d", resp.StatusCode)
	}

	var parsed graphQLLocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("nautobot graphql error: %s", parsed.Errors[0].Message)
	}

	locations := make([]model.Location, 0, len(parsed.Data.Locations))
	for _, loc := range parsed.Data.Locations {
		item := model.Location{ID: loc.ID, Name: loc.Name}
		if loc.Parent != nil && loc.Parent.ID != "" {
			item.Parent = &model.LocationRef{ID: loc.Parent.ID}
		}
		locations = append(locations, item)
	}
	return locations, nil
}

// filterParam 把 (field, operator) 映射到 Nautobot REST filter 参数名。
// contains 对应 Nautobot 的 __ic（icontains）后缀。
func filterParam(field, operator string) (string, error) {
	switch field {
	case "name":
		if operator == model.OperatorContains {
			return "name__ic", nil
		}
		return "name", nil
	case "location":
		return "location", nil
	case "role":
		return "role", nil
	case "tag":
		return "tag", nil
	case "device_type":
		return "device_type", nil
	case "manufacturer":
		return "manufacturer", nil
	case "platform":
		return "platform", nil
	case "status":
		return "status", nil
	case "has_primary":
		return "has_primary_ip", nil
	}
	if strings.HasPrefix(field, model.CustomFieldPrefix) {
		if operator == model.OperatorContains {
			return field + "__ic", nil
		}
		return field, nil
	}
	return "", fmt.Errorf("unsupported filter field: %q", field)
}

func (c *client) QueryDevices(ctx context.Context, field, operator, value string) ([]model.Device, error) {
	param, err := filterParam(field, operator)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set(param, value)
	return c.fetchDevices(ctx, query)
}

func (c *client) ListDevices(ctx context.Context) ([]model.Device, error) {
	return c.fetchDevices(ctx, url.Values{})
}

// deviceListResponse 对应 Nautobot REST 列表响应，分页靠 next 链接。
type deviceListResponse struct {
	Count   int         `json:"count"`
	Next    *string     `json:"next"`
	Results []apiDevice `json:"results"`
}

// apiDevice 只解出预览需要的嵌套字段，其余内容忽略。
type apiDevice struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Location   *named    `json:"location"`
	Role       *named    `json:"role"`
	Status     *labelled `json:"status"`
	DeviceType *struct {
		Model        string `json:"model"`
		Manufacturer *named `json:"manufacturer"`
	} `json:"device_type"`
	Platform   *named `json:"platform"`
	PrimaryIP4 *struct {
		Address string `json:"address"`
	} `json:"primary_ip4"`
	CustomFields map[string]any `json:"custom_fields"`
}

type named struct {
	Name string `json:"name"`
}

type labelled struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// fetchDevices 按过滤参数分页拉取设备，跟随 next 链接直到取完。
func (c *client) fetchDevices(ctx context.Context, query url.Values) ([]model.Device, error) {
	query.Set("limit", "200")
	query.Set("depth", "1")
	next := c.baseURL + "/api/dcim/devices/?" + query.Encode()

	var devices []model.Device
	for next != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("nautobot device query failed: %w", err)
		}

		var page deviceListResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("nautobot device query returned status %d", resp.StatusCode)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode device response: %w", decodeErr)
		}

		for _, d := range page.Results {
			devices = append(devices, convertDevice(d))
		}

		if page.Next != nil {
			next = *page.Next
		} else {
			next = ""
		}
	}
	return devices, nil
}

// convertDevice 把 REST 响应的嵌套对象压平成内部设备模型。
func convertDevice(d apiDevice) model.Device {
	dev := model.Device{ID: d.ID, Name: d.Name}
	if d.Location != nil {
		dev.Location = d.Location.Name
	}
	if d.Role != nil {
		dev.Role = d.Role.Name
	}
	if d.Status != nil {
		if d.Status.Label != "" {
			dev.Status = d.Status.Label
		} else {
			dev.Status = d.Status.Value
		}
	}
	if d.DeviceType != nil {
		dev.DeviceType = d.DeviceType.Model
		if d.DeviceType.Manufacturer != nil {
			dev.Manufacturer = d.DeviceType.Manufacturer.Name
		}
	}
	if d.Platform != nil {
		dev.Platform = d.Platform.Name
	}
	if d.PrimaryIP4 != nil {
		dev.PrimaryIP = d.PrimaryIP4.Address
	}
	if len(d.CustomFields) > 0 {
		dev.CustomFields = make(map[string]string, len(d.CustomFields))
		for k, v := range d.CustomFields {
			if v == nil {
				continue
			}
			dev.CustomFields[k] = fmt.Sprintf("%v", v)
		}
	}
	return dev
}

func (c *client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
}
