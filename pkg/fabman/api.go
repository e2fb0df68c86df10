package fabman

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Me GET /user/me
type Me struct {
	ID      int64 `json:"id"`
	Account int64 `json:"account"`
}

// Package 远端套餐
type Package struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DisplayName 套餐映射表中使用的显示串
func (p Package) DisplayName() string {
	return fmt.Sprintf("%s (ID: %d)", p.Name, p.ID)
}

// Space 远端场地
type Space struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Member 新建会员的返回
type Member struct {
	ID      int64 `json:"id"`
	Account int64 `json:"account"`
}

// MemberPackage POST /members/{id}/packages 请求体
type MemberPackage struct {
	Package  int64  `json:"package"`
	FromDate string `json:"fromDate"`
	Notes    string `json:"notes,omitempty"`
}

// FetchMe 当前 API Key 对应的身份
func (c *Client) FetchMe(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.Do(ctx, http.MethodGet, "/user/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// FetchPackages 全部套餐（分页）
func (c *Client) FetchPackages(ctx context.Context) ([]Package, error) {
	raw, err := c.FetchAll(ctx, "/packages")
	if err != nil {
		return nil, err
	}
	out := make([]Package, 0, len(raw))
	for _, r := range raw {
		var p Package
		if err := json.Unmarshal(r, &p); err != nil {
			return nil, fmt.Errorf("decode package: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// FetchSpaces 账户下的全部场地
func (c *Client) FetchSpaces(ctx context.Context) ([]Space, error) {
	var spaces []Space
	if err := c.Do(ctx, http.MethodGet, "/spaces", nil, &spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

// CreateMember 新建会员；邮箱重复时返回的 *APIError 满足 IsDuplicateEmail
func (c *Client) CreateMember(ctx context.Context, body map[string]interface{}) (*Member, error) {
	var m Member
	if err := c.Do(ctx, http.MethodPost, "/members", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMemberPackage 为会员分配套餐
func (c *Client) CreateMemberPackage(ctx context.Context, memberID int64, body MemberPackage) error {
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/members/%d/packages", memberID), body, nil)
}
