// Package bunadapter stores casbin policy rules in the application database
// through the shared *bun.DB connection pool.
//
// Derived from github.com/msales/casbin-bun-adapter, cut down to the
// persist.Adapter and persist.BatchAdapter surface this application uses:
// role grants are mutated through enforcer.AddGroupingPolicy /
// RemoveGroupingPolicy with auto-save enabled, so the filtered and update
// interfaces of the original are not implemented. Schema qualifiers were
// dropped so the same table works on SQLite and the Postgres public schema.
package bunadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/uptrace/bun"
)

// CasbinRule is one policy or grouping line. The composite primary key over
// every column makes rule storage idempotent without a synthetic ID.
type CasbinRule struct {
	bun.BaseModel `bun:"table:casbin_rules,alias:cr"`

	Ptype string `bun:",pk,type:varchar(100),notnull"` // 'p' (policy) or 'g' (grouping/grant)
	V0    string `bun:",pk,type:varchar(255)"`         // role (policies) or principal (grants)
	V1    string `bun:",pk,type:varchar(255)"`         // object, or granted role
	V2    string `bun:",pk,type:varchar(255)"`         // action
	V3    string `bun:",pk,type:varchar(255)"`
	V4    string `bun:",pk,type:varchar(255)"`
	V5    string `bun:",pk,type:varchar(255)"`
}

func newCasbinRule(ptype string, rule []string) *CasbinRule {
	r := &CasbinRule{Ptype: ptype}
	fields := []*string{&r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5}
	for i := 0; i < len(rule) && i < len(fields); i++ {
		*fields[i] = rule[i]
	}
	return r
}

// values returns the non-empty tail of the rule columns.
func (r *CasbinRule) values() []string {
	all := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	last := -1
	for i, v := range all {
		if v != "" {
			last = i
		}
	}
	return all[:last+1]
}

// String renders the rule in casbin's CSV line format for persist helpers.
func (r *CasbinRule) String() string {
	parts := append([]string{r.Ptype}, r.values()...)
	return strings.Join(parts, ", ")
}

// Adapter persists casbin policy through bun.
type Adapter struct {
	db *bun.DB
}

var (
	_ persist.Adapter      = (*Adapter)(nil)
	_ persist.BatchAdapter = (*Adapter)(nil)
)

// NewAdapter wraps an existing bun connection. The casbin_rules table must
// already exist (created by migrations).
func NewAdapter(db *bun.DB) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("bunadapter: nil db")
	}
	return &Adapter{db: db}, nil
}

// LoadPolicy loads all policy rules from the database.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []*CasbinRule
	if err := a.db.NewSelect().Model(&rules).Scan(context.Background()); err != nil {
		return fmt.Errorf("load casbin policy: %w", err)
	}
	for _, r := range rules {
		if len(r.values()) == 0 {
			continue
		}
		if err := persist.LoadPolicyLine(r.String(), m); err != nil {
			return fmt.Errorf("parse casbin rule %q: %w", r.String(), err)
		}
	}
	return nil
}

// SavePolicy replaces all stored rules with the model's current policy.
func (a *Adapter) SavePolicy(m model.Model) error {
	var rules []*CasbinRule
	for ptype, ast := range m["p"] {
		for _, rule := range ast.Policy {
			rules = append(rules, newCasbinRule(ptype, rule))
		}
	}
	for ptype, ast := range m["g"] {
		for _, rule := range ast.Policy {
			rules = append(rules, newCasbinRule(ptype, rule))
		}
	}

	ctx := context.Background()
	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*CasbinRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear casbin rules: %w", err)
		}
		if len(rules) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rules).Exec(ctx); err != nil {
			return fmt.Errorf("insert casbin rules: %w", err)
		}
		return nil
	})
}

// AddPolicy persists a single rule.
func (a *Adapter) AddPolicy(_ string, ptype string, rule []string) error {
	r := newCasbinRule(ptype, rule)
	_, err := a.db.NewInsert().
		Model(r).
		On("CONFLICT DO NOTHING").
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("add casbin rule: %w", err)
	}
	return nil
}

// AddPolicies persists a batch of rules.
func (a *Adapter) AddPolicies(sec string, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.AddPolicy(sec, ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

// RemovePolicy deletes a single rule.
func (a *Adapter) RemovePolicy(_ string, ptype string, rule []string) error {
	r := newCasbinRule(ptype, rule)
	_, err := a.db.NewDelete().
		Model((*CasbinRule)(nil)).
		Where("ptype = ?", r.Ptype).
		Where("v0 = ?", r.V0).
		Where("v1 = ?", r.V1).
		Where("v2 = ?", r.V2).
		Where("v3 = ?", r.V3).
		Where("v4 = ?", r.V4).
		Where("v5 = ?", r.V5).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("remove casbin rule: %w", err)
	}
	return nil
}

// RemovePolicies deletes a batch of rules.
func (a *Adapter) RemovePolicies(sec string, ptype string, rules [][]string) error {
	for _, rule := range rules {
		if err := a.RemovePolicy(sec, ptype, rule); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFilteredPolicy deletes rules matching the given field prefix.
func (a *Adapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	query := a.db.NewDelete().Model((*CasbinRule)(nil)).Where("ptype = ?", ptype)

	columns := []string{"v0", "v1", "v2", "v3", "v4", "v5"}
	for i, value := range fieldValues {
		if value == "" {
			continue
		}
		col := fieldIndex + i
		if col >= len(columns) {
			break
		}
		query = query.Where(columns[col]+" = ?", value)
	}

	if _, err := query.Exec(context.Background()); err != nil {
		return fmt.Errorf("remove filtered casbin rules: %w", err)
	}
	return nil
}
