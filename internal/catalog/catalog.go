// Package catalog 是远端会员字段的固定登记表：目标显示名 -> Target。
package catalog

// Ignore 占位目标名：映射到它的表单字段不参与提交
const Ignore = "ignore"

// ValueKind 会员属性的取值方式
type ValueKind int

const (
	Plain ValueKind = iota
	Date
	RichTextAppend
)

func (k ValueKind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Date:
		return "date"
	case RichTextAppend:
		return "rich_text_append"
	default:
		return "unknown"
	}
}

// PackageRole 套餐属性的角色
type PackageRole int

const (
	PackageName PackageRole = iota
	PackageFromDate
)

func (r PackageRole) String() string {
	switch r {
	case PackageName:
		return "name"
	case PackageFromDate:
		return "fromDate"
	default:
		return "unknown"
	}
}

// Target 字段值写入的目的地：MemberAttribute 或 PackageAttribute
type Target interface {
	isTarget()
}

// MemberAttribute 写入会员记录的某个属性
type MemberAttribute struct {
	Attribute string
	Kind      ValueKind
}

// PackageAttribute 写入套餐分配
type PackageAttribute struct {
	Role PackageRole
}

func (MemberAttribute) isTarget()  {}
func (PackageAttribute) isTarget() {}

// Entry 登记表中的一项
type Entry struct {
	Name   string
	Target Target
	// Defect 非空表示该项配置存在已知问题，不能用于提交
	Defect string
}

// 会员属性名
const (
	AttrFirstName = "firstName"
	AttrLastName  = "lastName"
	AttrEmail     = "emailAddress"
	AttrGender    = "gender"
	AttrNotes     = "notes"
	AttrSpace     = "space"
	AttrAccount   = "account"
)

// 常用目标名
const (
	NamePackage          = "Package name"
	NamePackageStartDate = "Package start date"
	NameFirstName        = "First name"
	NameLastName         = "Last name"
	NameMemberNumber     = "Member number"
	NameGender           = "Gender"
	NameNotes            = "Notes"
)

func member(attr string) MemberAttribute { return MemberAttribute{Attribute: attr, Kind: Plain} }

// entries 按下拉列表顺序排列
var entries = []Entry{
	{Name: Ignore},
	{Name: NamePackage, Target: PackageAttribute{Role: PackageName}},
	{Name: NamePackageStartDate, Target: PackageAttribute{Role: PackageFromDate}},
	{Name: NameFirstName, Target: member(AttrFirstName)},
	{Name: NameLastName, Target: member(AttrLastName)},
	{Name: "Email address", Target: member(AttrEmail)},
	// 历史版本把会员编号映射到了 firstName，这里不沿用，交给校验标出
	{Name: NameMemberNumber, Defect: `"Member number" has no confirmed member attribute; map this form field to "ignore" or to another field`},
	{Name: "Phone", Target: member("phone")},
	{Name: "Date of birth", Target: MemberAttribute{Attribute: "dateOfBirth", Kind: Date}},
	{Name: NameGender, Target: member(AttrGender)},
	{Name: "Company", Target: member("company")},
	{Name: NameNotes, Target: MemberAttribute{Attribute: AttrNotes, Kind: RichTextAppend}},
	{Name: "Address line 1", Target: member("address")},
	{Name: "Address line 2", Target: member("address2")},
	{Name: "City", Target: member("city")},
	{Name: "Zip / Postal code", Target: member("zip")},
	{Name: "Country code", Target: member("countryCode")},
	{Name: "Region / State", Target: member("region")},
	{Name: "Has separate billing address (yes/no)", Target: member("hasBillingAddress")},
	{Name: "Billing address: First name", Target: member("billingFirstName")},
	{Name: "Billing address: Last name", Target: member("billingLastName")},
	{Name: "Billing address: Company", Target: member("billingCompany")},
	{Name: "Billing address line 1", Target: member("billingAddress")},
	{Name: "Billing address line 2", Target: member("billingAddress2")},
	{Name: "Billing address: City", Target: member("billingCity")},
	{Name: "Billing address: Zip / Postal code", Target: member("billingZip")},
	{Name: "Billing address: Country code", Target: member("billingCountryCode")},
	{Name: "Billing address: Region / State", Target: member("billingRegion")},
}

var byName = func() map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}()

// Lookup 精确匹配目标名；未知名称与 ignore 都返回 ok=false
func Lookup(name string) (Target, bool) {
	e, ok := byName[name]
	if !ok || e.Target == nil {
		return nil, false
	}
	return e.Target, true
}

// Find 返回完整登记项（含 ignore 与有缺陷的项）
func Find(name string) (Entry, bool) {
	e, ok := byName[name]
	return e, ok
}

// Names 所有可选目标名（供表格下拉校验使用）
func Names() []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

// IsPackage 目标是否为套餐属性
func IsPackage(t Target) bool {
	_, ok := t.(PackageAttribute)
	return ok
}

// IsNameAttribute 目标是否为 firstName / lastName
func IsNameAttribute(t Target) bool {
	m, ok := t.(MemberAttribute)
	return ok && (m.Attribute == AttrFirstName || m.Attribute == AttrLastName)
}
