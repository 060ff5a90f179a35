// Package models contains domain entities and business models for the term insurance analyzer
package models

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// Plan sources. One tag per listing adapter plus manual entry.
const (
	PlanSourceBeshak       = "beshak"
	PlanSourcePolicybazaar = "policybazaar"
	PlanSourceDitto        = "ditto"
	PlanSourceFallback     = "fallback"
	PlanSourceManual       = "manual"
)

// PlanSources lists every valid source tag in scrape priority order, manual last
var PlanSources = []string{
	PlanSourceBeshak,
	PlanSourcePolicybazaar,
	PlanSourceDitto,
	PlanSourceFallback,
	PlanSourceManual,
}

// InsurancePlan is one insurer's term plan offering.
// Table: insurance_plans
// Unique by natural_key, the case-folded (provider, plan_name); re-scrapes update the row in place.
// Sum assured is in lakhs, premium in INR per year.
type InsurancePlan struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PlanName string `gorm:"size:255;not null;index:idx_insurance_plans_plan_name" json:"plan_name" validate:"required,min=2,max=255"`
	Provider string `gorm:"size:255;not null;index:idx_insurance_plans_provider" json:"provider" validate:"required,min=2,max=255"`
	Source   string `gorm:"size:32;not null;index:idx_insurance_plans_source" json:"source" validate:"required,oneof=beshak policybazaar ditto fallback manual"`

	// UniqueKey is set by Normalize from NaturalKey
	UniqueKey string `gorm:"column:natural_key;size:511;not null;uniqueIndex:uk_insurance_plans_natural_key" json:"-"`

	SumAssuredMin        float64                     `gorm:"type:numeric(12,2);not null" json:"sum_assured_min" validate:"gte=0"`
	SumAssuredMax        float64                     `gorm:"type:numeric(12,2);not null" json:"sum_assured_max" validate:"gtefield=SumAssuredMin"`
	PremiumAnnual        float64                     `gorm:"type:numeric(12,2);not null" json:"premium_annual" validate:"gte=0"`
	PolicyTermMin        int                         `gorm:"not null" json:"policy_term_min" validate:"gte=1,lte=100"`
	PolicyTermMax        int                         `gorm:"not null" json:"policy_term_max" validate:"gtefield=PolicyTermMin,lte=100"`
	AgeMin               int                         `gorm:"not null" json:"age_min" validate:"gte=0,lte=120"`
	AgeMax               int                         `gorm:"not null" json:"age_max" validate:"gtefield=AgeMin,lte=120"`
	ClaimSettlementRatio float64                     `gorm:"type:numeric(5,2);not null;index:idx_insurance_plans_csr" json:"claim_settlement_ratio" validate:"gte=0,lte=100"`
	KeyFeatures          datatypes.JSONSlice[string] `json:"key_features"`
	SourceURL            string                      `gorm:"size:1024" json:"source_url" validate:"omitempty,max=1024"`

	LastUpdated time.Time `gorm:"not null;index:idx_insurance_plans_last_updated" json:"last_updated"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (InsurancePlan) TableName() string {
	return "insurance_plans"
}

var (
	planValidatorOnce sync.Once
	planValidator     *validator.Validate
)

func getPlanValidator() *validator.Validate {
	planValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		planValidator = v
	})
	return planValidator
}

// Normalize trims text fields, drops blank features and refreshes UniqueKey
func (p *InsurancePlan) Normalize() {
	p.PlanName = strings.Join(strings.Fields(p.PlanName), " ")
	p.Provider = strings.Join(strings.Fields(p.Provider), " ")
	p.UniqueKey = PlanNaturalKey(p.Provider, p.PlanName)
	p.Source = strings.ToLower(strings.TrimSpace(p.Source))
	p.SourceURL = strings.TrimSpace(p.SourceURL)

	features := make([]string, 0, len(p.KeyFeatures))
	for _, f := range p.KeyFeatures {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	p.KeyFeatures = features
}

// Validate checks the record invariants. The returned error is a
// validator.ValidationErrors keyed by json field names.
func (p *InsurancePlan) Validate() error {
	return getPlanValidator().Struct(p)
}

// NaturalKey returns the (provider, plan_name) identity used by upserts
func (p *InsurancePlan) NaturalKey() string {
	return PlanNaturalKey(p.Provider, p.PlanName)
}

// PlanNaturalKey folds case and whitespace so "HDFC Life" and "HDFC  LIFE" share one row
func PlanNaturalKey(provider, planName string) string {
	fold := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	return fold(provider) + "|" + fold(planName)
}

// InsurancePlanFilter represents filter criteria for plan queries
type InsurancePlanFilter struct {
	ID        *uint
	IDs       []uint
	Provider  *string
	PlanName  *string
	PlanNames []string
	Source    *string
	MinCSR    *float64
	Search    *string
}

// InsurancePlanStats summarizes the plan store
type InsurancePlanStats struct {
	Total       int64
	BySource    map[string]int64
	AverageCSR  float64
	LastUpdated *time.Time
}
