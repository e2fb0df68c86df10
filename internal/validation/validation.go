// Package validation 对映射表做静态检查，遇到第一类问题即停止。
package validation

import (
	"fmt"

	"github.com/fabsignup/fabsignup/internal/catalog"
	"github.com/fabsignup/fabsignup/internal/mapping"
	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/internal/resolver"
	"github.com/fabsignup/fabsignup/pkg/fabman"
)

// Issue 一个需要人工修正的配置问题；Row 为 0 表示指向整张表
type Issue struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row,omitempty"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (i *Issue) Error() string {
	if i.Row > 0 {
		return fmt.Sprintf("%s (%s, row %d): %s", i.Title, i.Sheet, i.Row, i.Message)
	}
	return fmt.Sprintf("%s (%s): %s", i.Title, i.Sheet, i.Message)
}

// Category 实现 resolver.Categorized
func (i *Issue) Category() resolver.Category { return resolver.CategoryConfiguration }

// Input 检查所需的全部数据
type Input struct {
	Fields   []mapping.Row
	Packages []mapping.Row
	Genders  []model.GenderMapping
	// RemotePackages 仅在映射了套餐字段时需要
	RemotePackages []fabman.Package
}

// NeedsRemotePackages 是否有字段映射到套餐属性
func NeedsRemotePackages(fields []mapping.Row) bool {
	for _, f := range fields {
		if t, ok := catalog.Lookup(f.Target); ok && catalog.IsPackage(t) {
			return true
		}
	}
	return false
}

type check func(Input) *Issue

var checks = []check{
	checkNameMapped,
	checkDefectiveTargets,
	checkGenderTable,
	checkPackagesMapped,
	checkPackagesExist,
}

// Check 按顺序执行检查，返回第一个问题；全部通过返回 nil
func Check(in Input) *Issue {
	for _, c := range checks {
		if issue := c(in); issue != nil {
			return issue
		}
	}
	return nil
}

func checkNameMapped(in Input) *Issue {
	for _, f := range in.Fields {
		if t, ok := catalog.Lookup(f.Target); ok && catalog.IsNameAttribute(t) {
			return nil
		}
	}
	return &Issue{
		Sheet:   model.SheetFieldMappings,
		Title:   "Name not mapped",
		Message: `Members need to have at least a first name or a last name. You have to map one form field to member field "First name" and/or "Last name".`,
	}
}

func checkDefectiveTargets(in Input) *Issue {
	for _, f := range in.Fields {
		if e, ok := catalog.Find(f.Target); ok && e.Defect != "" {
			return &Issue{
				Sheet:   model.SheetFieldMappings,
				Row:     f.RowIndex,
				Title:   "Unsupported field",
				Message: fmt.Sprintf("Form field %q: %s", f.SourceName, e.Defect),
			}
		}
	}
	return nil
}

// 映射了性别字段时性别表不能为空，且每行都必须填写表单取值与远端 ID
func checkGenderTable(in Input) *Issue {
	mapped := false
	for _, f := range in.Fields {
		if t, ok := catalog.Lookup(f.Target); ok {
			if m, ok := t.(catalog.MemberAttribute); ok && m.Attribute == catalog.AttrGender {
				mapped = true
				break
			}
		}
	}
	if !mapped {
		return nil
	}
	filled := 0
	for _, g := range in.Genders {
		if g.FormValue == "" && g.RemoteGenderID == "" {
			continue
		}
		filled++
		if g.FormValue == "" || g.RemoteGenderID == "" {
			return &Issue{
				Sheet:   model.SheetGenderMappings,
				Row:     g.RowIndex,
				Title:   "Gender not mapped",
				Message: fmt.Sprintf("You have not selected a gender for form value %q", g.FormValue),
			}
		}
	}
	if filled == 0 {
		return &Issue{
			Sheet:   model.SheetGenderMappings,
			Title:   "Gender not mapped",
			Message: fmt.Sprintf("A form field is mapped to Gender, so you need to define your genders in the %q sheet!", model.SheetGenderMappings),
		}
	}
	return nil
}

func checkPackagesMapped(in Input) *Issue {
	if !NeedsRemotePackages(in.Fields) {
		return nil
	}
	if len(in.Packages) == 0 {
		return &Issue{
			Sheet:   model.SheetPackageMappings,
			Title:   "No packages",
			Message: fmt.Sprintf("You need to define your packages in the %q sheet!", model.SheetPackageMappings),
		}
	}
	for _, p := range in.Packages {
		if _, ok := resolver.PackageID(p.Target); !ok {
			return &Issue{
				Sheet:   model.SheetPackageMappings,
				Row:     p.RowIndex,
				Title:   "Package not mapped",
				Message: fmt.Sprintf("You have not selected a package for form option %q", p.SourceName),
			}
		}
	}
	return nil
}

func checkPackagesExist(in Input) *Issue {
	if !NeedsRemotePackages(in.Fields) {
		return nil
	}
	known := make(map[int64]struct{}, len(in.RemotePackages))
	for _, p := range in.RemotePackages {
		known[p.ID] = struct{}{}
	}
	for _, p := range in.Packages {
		id, _ := resolver.PackageID(p.Target)
		if _, ok := known[id]; !ok {
			return &Issue{
				Sheet: model.SheetPackageMappings,
				Row:   p.RowIndex,
				Title: "Package not found",
				Message: fmt.Sprintf("Could not find the package with ID %d for form option %q in your account. "+
					"Please update the data from the remote service if you have added or removed packages.", id, p.SourceName),
			}
		}
	}
	return nil
}
