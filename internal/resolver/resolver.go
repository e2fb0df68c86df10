// Package resolver 把一次表单提交解析为会员记录与套餐分配。
package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fabsignup/fabsignup/internal/catalog"
	"github.com/fabsignup/fabsignup/pkg/fabman"
	"github.com/fabsignup/fabsignup/pkg/logger"
	"golang.org/x/text/unicode/norm"
)

// Config 一次调用使用的映射配置
type Config struct {
	// FieldMap 表单字段名 -> 目标显示名
	FieldMap map[string]string
	// PackageMap 表单选项名 -> "<name> (ID: <id>)"
	PackageMap map[string]string
	// GenderMap 表单取值 -> 远端性别 ID；nil 表示未建表，取值直接透传
	GenderMap map[string]string
	APIKey    string
}

// PackageAssignment 一条待创建的套餐分配，FromDate 为空表示未指定
type PackageAssignment struct {
	PackageID int64  `json:"package"`
	FromDate  string `json:"from_date,omitempty"`
}

// Payload 解析结果
type Payload struct {
	// Member 会员属性；空串表示已设置但为空
	Member   map[string]string   `json:"member"`
	Packages []PackageAssignment `json:"packages"`
}

// NewPayload 空结果
func NewPayload() *Payload {
	return &Payload{Member: map[string]string{}}
}

// Body 创建会员的请求体：空串转为 null，账户与场地 ID 转为数值
func (p *Payload) Body() map[string]interface{} {
	body := make(map[string]interface{}, len(p.Member))
	for k, v := range p.Member {
		switch {
		case v == "":
			body[k] = nil
		case k == catalog.AttrAccount || k == catalog.AttrSpace:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				body[k] = n
				continue
			}
			body[k] = v
		default:
			body[k] = v
		}
	}
	return body
}

var packageIDPattern = regexp.MustCompile(`\(ID:\s*(\d+)\)$`)

// PackageID 从 "<name> (ID: <id>)" 中提取远端 ID
func PackageID(display string) (int64, bool) {
	m := packageIDPattern.FindStringSubmatch(strings.TrimSpace(display))
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// OrderFields 按表单声明顺序稳定排序；不在 order 中的字段排在最前并保持原相对顺序
func OrderFields(row Row, order []string) Row {
	index := make(map[string]int, len(order))
	for i, name := range order {
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	pos := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return -1
	}
	out := make(Row, len(row))
	copy(out, row)
	sort.SliceStable(out, func(i, j int) bool {
		return pos(out[i].Name) < pos(out[j].Name)
	})
	return out
}

// Resolve 按表单顺序逐字段应用映射，最后要求名或姓至少有一个
func Resolve(row Row, order []string, cfg Config) (*Payload, error) {
	r := newResolution(cfg)
	for _, f := range OrderFields(row, order) {
		if err := r.apply(f); err != nil {
			return nil, err
		}
	}
	if r.payload.Member[catalog.AttrFirstName] == "" && r.payload.Member[catalog.AttrLastName] == "" {
		return nil, &MissingNameError{}
	}
	return r.payload, nil
}

type resolution struct {
	cfg      Config
	payload  *Payload
	packages []packageName
}

type packageName struct {
	name    string
	display string
}

func newResolution(cfg Config) *resolution {
	r := &resolution{cfg: cfg, payload: NewPayload()}
	for name, display := range cfg.PackageMap {
		r.packages = append(r.packages, packageName{name: normalizeName(name), display: display})
	}
	// 最长优先；等长时按名称排序保证确定性
	sort.Slice(r.packages, func(i, j int) bool {
		if len(r.packages[i].name) != len(r.packages[j].name) {
			return len(r.packages[i].name) > len(r.packages[j].name)
		}
		return r.packages[i].name < r.packages[j].name
	})
	return r
}

func (r *resolution) apply(f Field) error {
	targetName, ok := r.cfg.FieldMap[f.Name]
	if !ok {
		return nil
	}
	entry, ok := catalog.Find(targetName)
	if !ok {
		return nil
	}
	if entry.Defect != "" {
		return &UnsupportedTargetError{Field: f.Name, Target: entry.Name, Reason: entry.Defect}
	}

	switch t := entry.Target.(type) {
	case nil:
		return nil
	case catalog.MemberAttribute:
		return r.applyMember(f, t)
	case catalog.PackageAttribute:
		switch t.Role {
		case catalog.PackageName:
			return r.applyPackageNames(f)
		case catalog.PackageFromDate:
			return r.applyFromDate(f)
		}
	}
	return fmt.Errorf("unexpected field mapping configuration for form field %q: %q", f.Name, targetName)
}

func (r *resolution) applyMember(f Field, attr catalog.MemberAttribute) error {
	var value string
	if attr.Kind == catalog.Date {
		if !f.Value.IsEmpty() {
			d, ok := f.Value.CalendarDate()
			if !ok {
				return &InvalidDateError{Field: f.Name, Value: f.Value.Plain()}
			}
			value = d
		}
	} else if !f.Value.IsEmpty() {
		value = f.Value.Plain()
	}

	member := r.payload.Member
	if attr.Attribute == catalog.AttrGender {
		if value == "" {
			return nil
		}
		if r.cfg.GenderMap == nil {
			member[catalog.AttrGender] = value
			return nil
		}
		id, ok := r.cfg.GenderMap[value]
		if !ok {
			return &UnmappedGenderError{Value: value}
		}
		member[catalog.AttrGender] = id
		return nil
	}

	if existing := member[attr.Attribute]; existing != "" && value != "" {
		if attr.Kind == catalog.RichTextAppend {
			member[attr.Attribute] = existing + "<br>" + f.Name + ": " + value
		} else {
			member[attr.Attribute] = existing + " " + value
		}
		return nil
	}
	member[attr.Attribute] = value
	return nil
}

func (r *resolution) applyPackageNames(f Field) error {
	if f.Value.IsEmpty() {
		return nil
	}
	raw := f.Value.Plain()
	rest := normalizeName(raw)
	for rest != "" {
		match, ok := r.longestPrefix(rest)
		if !ok {
			return &UnmappedPackageError{Name: rest}
		}
		id, ok := PackageID(match.display)
		if !ok {
			return &UnmappedPackageError{Name: match.name}
		}
		r.payload.Packages = append(r.payload.Packages, PackageAssignment{PackageID: id})

		rest = rest[len(match.name):]
		if rest == "" {
			break
		}
		if !strings.HasPrefix(rest, ", ") {
			return &MalformedPackageListError{Value: raw, Fragment: rest}
		}
		rest = rest[len(", "):]
		if rest == "" {
			return &MalformedPackageListError{Value: raw, Fragment: ", "}
		}
	}
	return nil
}

func (r *resolution) longestPrefix(s string) (packageName, bool) {
	for _, p := range r.packages {
		if p.name != "" && strings.HasPrefix(s, p.name) {
			return p, true
		}
	}
	return packageName{}, false
}

func (r *resolution) applyFromDate(f Field) error {
	if f.Value.IsEmpty() {
		return nil
	}
	d, ok := f.Value.CalendarDate()
	if !ok {
		return &InvalidDateError{Field: f.Name, Value: f.Value.Plain()}
	}
	attached := false
	for i := range r.payload.Packages {
		if r.payload.Packages[i].FromDate == "" {
			r.payload.Packages[i].FromDate = d
			attached = true
		}
	}
	if !attached {
		logger.Warn("Could not find a package for the package date", "field", f.Name, "date", d, "packages", len(r.payload.Packages))
	}
	return nil
}

// normalizeName NFC 规范化并把连续空格折叠为一个
func normalizeName(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, c := range s {
		if c == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ResolveSpace 确定会员所属场地：已指定则校验存在，否则要求账户只有一个场地
func ResolveSpace(p *Payload, spaces []fabman.Space, account int64) (fabman.Space, error) {
	if want := p.Member[catalog.AttrSpace]; want != "" {
		for _, s := range spaces {
			if strconv.FormatInt(s.ID, 10) == want {
				return s, nil
			}
		}
		return fabman.Space{}, &UnknownSpaceError{Space: want}
	}
	if len(spaces) != 1 {
		return fabman.Space{}, &AmbiguousSpaceError{Account: account, Count: len(spaces)}
	}
	p.Member[catalog.AttrSpace] = strconv.FormatInt(spaces[0].ID, 10)
	return spaces[0], nil
}
