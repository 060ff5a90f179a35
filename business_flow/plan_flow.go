package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// PlanFlow defines operations on the plan store
type PlanFlow interface {
	ListPlans(ctx context.Context, req *dto.ListPlansRequest, metadata *ClientMetadata) (*dto.ListPlansResponse, error)
	GetPlan(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.PlanDTO, error)
	CreatePlan(ctx context.Context, req *dto.CreatePlanRequest, metadata *ClientMetadata) (*dto.PlanDTO, error)
	UpdatePlan(ctx context.Context, id uint, req *dto.UpdatePlanRequest, metadata *ClientMetadata) (*dto.PlanDTO, error)
	DeletePlan(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.DeletePlanResponse, error)
	Stats(ctx context.Context, metadata *ClientMetadata) (*dto.StatsResponse, error)
	ExportPlans(ctx context.Context, req *dto.ListPlansRequest, metadata *ClientMetadata) (string, []byte, error)
}

// PlanFlowImpl implements PlanFlow
type PlanFlowImpl struct {
	planRepo repository.InsurancePlanRepository
	runRepo  repository.ScrapeRunRepository
	logger   *utils.Logger
}

func NewPlanFlow(planRepo repository.InsurancePlanRepository, runRepo repository.ScrapeRunRepository, logger *utils.Logger) PlanFlow {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &PlanFlowImpl{planRepo: planRepo, runRepo: runRepo, logger: logger.With("component", "plan_flow")}
}

func (f *PlanFlowImpl) ListPlans(ctx context.Context, req *dto.ListPlansRequest, metadata *ClientMetadata) (*dto.ListPlansResponse, error) {
	plans, err := f.planRepo.ByFilter(ctx, toPlanFilter(req), "", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_PLANS_FAILED", "Failed to list plans", err)
	}

	out := make([]dto.PlanDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, ToPlanDTO(*p))
	}
	return &dto.ListPlansResponse{Plans: out, Total: len(out)}, nil
}

func (f *PlanFlowImpl) GetPlan(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.PlanDTO, error) {
	plan, err := f.getPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToPlanDTO(*plan)
	return &out, nil
}

func (f *PlanFlowImpl) CreatePlan(ctx context.Context, req *dto.CreatePlanRequest, metadata *ClientMetadata) (*dto.PlanDTO, error) {
	plan := &models.InsurancePlan{
		PlanName:             req.PlanName,
		Provider:             req.Provider,
		Source:               models.PlanSourceManual,
		SumAssuredMin:        req.SumAssuredMin,
		SumAssuredMax:        req.SumAssuredMax,
		PremiumAnnual:        req.PremiumAnnual,
		PolicyTermMin:        req.PolicyTermMin,
		PolicyTermMax:        req.PolicyTermMax,
		AgeMin:               req.AgeMin,
		AgeMax:               req.AgeMax,
		ClaimSettlementRatio: req.ClaimSettlementRatio,
		KeyFeatures:          req.KeyFeatures,
		SourceURL:            req.SourceURL,
	}
	plan.Normalize()
	if err := plan.Validate(); err != nil {
		return nil, validationOr(err, "INVALID_PLAN", "Invalid plan")
	}

	existing, err := f.planRepo.ByNaturalKey(ctx, plan.Provider, plan.PlanName)
	if err != nil {
		return nil, NewBusinessError("CREATE_PLAN_FAILED", "Failed to check existing plans", err)
	}
	if existing != nil {
		return nil, ErrPlanAlreadyExists
	}

	if err := f.planRepo.Save(ctx, plan); err != nil {
		return nil, planWriteError(err, "CREATE_PLAN_FAILED", "Failed to create plan")
	}

	f.logger.Info("Plan created", append([]any{"plan_id", plan.ID, "provider", plan.Provider, "plan_name", plan.PlanName}, metadata.logFields()...)...)
	out := ToPlanDTO(*plan)
	return &out, nil
}

func (f *PlanFlowImpl) UpdatePlan(ctx context.Context, id uint, req *dto.UpdatePlanRequest, metadata *ClientMetadata) (*dto.PlanDTO, error) {
	if !req.HasChanges() {
		return nil, ErrPlanUpdateRequired
	}

	plan, err := f.getPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	applyPlanUpdate(plan, req)
	plan.Normalize()
	if err := plan.Validate(); err != nil {
		return nil, validationOr(err, "INVALID_PLAN", "Invalid plan")
	}

	if req.PlanName != nil || req.Provider != nil {
		other, err := f.planRepo.ByNaturalKey(ctx, plan.Provider, plan.PlanName)
		if err != nil {
			return nil, NewBusinessError("UPDATE_PLAN_FAILED", "Failed to check existing plans", err)
		}
		if other != nil && other.ID != plan.ID {
			return nil, ErrPlanAlreadyExists
		}
	}

	if err := f.planRepo.Update(ctx, plan); err != nil {
		return nil, planWriteError(err, "UPDATE_PLAN_FAILED", "Failed to update plan")
	}

	f.logger.Info("Plan updated", append([]any{"plan_id", plan.ID}, metadata.logFields()...)...)
	out := ToPlanDTO(*plan)
	return &out, nil
}

func (f *PlanFlowImpl) DeletePlan(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.DeletePlanResponse, error) {
	if id == 0 {
		return nil, ErrPlanIDRequired
	}
	deleted, err := f.planRepo.Delete(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DELETE_PLAN_FAILED", "Failed to delete plan", err)
	}
	if !deleted {
		return nil, ErrPlanNotFound
	}

	f.logger.Info("Plan deleted", append([]any{"plan_id", id}, metadata.logFields()...)...)
	return &dto.DeletePlanResponse{ID: id, Deleted: true}, nil
}

func (f *PlanFlowImpl) Stats(ctx context.Context, metadata *ClientMetadata) (*dto.StatsResponse, error) {
	stats, err := f.planRepo.Stats(ctx)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to compute plan statistics", err)
	}

	out := &dto.StatsResponse{
		TotalPlans: stats.Total,
		BySource:   stats.BySource,
		AverageCSR: stats.AverageCSR,
	}
	if stats.LastUpdated != nil {
		ts := stats.LastUpdated.UTC().Format(time.RFC3339)
		out.LastUpdated = &ts
	}

	if f.runRepo != nil {
		run, err := f.runRepo.Latest(ctx)
		if err != nil {
			return nil, NewBusinessError("STATS_FAILED", "Failed to load the latest scrape run", err)
		}
		if run != nil {
			last := ToScrapeRunDTO(*run)
			out.LastRun = &last
		}
	}
	return out, nil
}

var exportHeader = []string{
	"id", "provider", "plan_name", "source", "claim_settlement_ratio", "premium_annual",
	"sum_assured_min_lakhs", "sum_assured_max_lakhs", "age_min", "age_max",
	"policy_term_min", "policy_term_max", "key_features", "source_url", "last_updated",
}

// ExportPlans renders the filtered plan list as an xlsx workbook
func (f *PlanFlowImpl) ExportPlans(ctx context.Context, req *dto.ListPlansRequest, metadata *ClientMetadata) (string, []byte, error) {
	plans, err := f.planRepo.ByFilter(ctx, toPlanFilter(req), "", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("LIST_PLANS_FAILED", "Failed to list plans", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const sheet = "plans"
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare workbook", fmt.Errorf("%w: %v", ErrExportFailed, err))
	}
	header := exportHeader
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write header row", fmt.Errorf("%w: %v", ErrExportFailed, err))
	}

	for i, p := range plans {
		record := []any{
			p.ID,
			p.Provider,
			p.PlanName,
			p.Source,
			p.ClaimSettlementRatio,
			p.PremiumAnnual,
			p.SumAssuredMin,
			p.SumAssuredMax,
			p.AgeMin,
			p.AgeMax,
			p.PolicyTermMin,
			p.PolicyTermMax,
			strings.Join(p.KeyFeatures, "; "),
			p.SourceURL,
			p.LastUpdated.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write plan row", fmt.Errorf("%w: %v", ErrExportFailed, err))
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", fmt.Errorf("%w: %v", ErrExportFailed, err))
	}

	f.logger.Info("Plans exported", append([]any{"rows", len(plans)}, metadata.logFields()...)...)
	filename := "term_plans_" + strconv.FormatInt(utils.UTCNow().Unix(), 10) + ".xlsx"
	return filename, buf.Bytes(), nil
}

func (f *PlanFlowImpl) getPlan(ctx context.Context, id uint) (*models.InsurancePlan, error) {
	if id == 0 {
		return nil, ErrPlanIDRequired
	}
	plan, err := f.planRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_PLAN_FAILED", "Failed to load plan", err)
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func toPlanFilter(req *dto.ListPlansRequest) models.InsurancePlanFilter {
	filter := models.InsurancePlanFilter{}
	if req == nil {
		return filter
	}
	if req.Source != nil && strings.TrimSpace(*req.Source) != "" {
		source := strings.ToLower(strings.TrimSpace(*req.Source))
		filter.Source = &source
	}
	filter.MinCSR = req.MinCSR
	if req.Search != nil && strings.TrimSpace(*req.Search) != "" {
		filter.Search = req.Search
	}
	return filter
}

func applyPlanUpdate(plan *models.InsurancePlan, req *dto.UpdatePlanRequest) {
	if req.PlanName != nil {
		plan.PlanName = *req.PlanName
	}
	if req.Provider != nil {
		plan.Provider = *req.Provider
	}
	if req.SumAssuredMin != nil {
		plan.SumAssuredMin = *req.SumAssuredMin
	}
	if req.SumAssuredMax != nil {
		plan.SumAssuredMax = *req.SumAssuredMax
	}
	if req.PremiumAnnual != nil {
		plan.PremiumAnnual = *req.PremiumAnnual
	}
	if req.PolicyTermMin != nil {
		plan.PolicyTermMin = *req.PolicyTermMin
	}
	if req.PolicyTermMax != nil {
		plan.PolicyTermMax = *req.PolicyTermMax
	}
	if req.AgeMin != nil {
		plan.AgeMin = *req.AgeMin
	}
	if req.AgeMax != nil {
		plan.AgeMax = *req.AgeMax
	}
	if req.ClaimSettlementRatio != nil {
		plan.ClaimSettlementRatio = *req.ClaimSettlementRatio
	}
	if req.KeyFeatures != nil {
		plan.KeyFeatures = *req.KeyFeatures
	}
	if req.SourceURL != nil {
		plan.SourceURL = *req.SourceURL
	}
}

// validationOr maps validator failures to a ValidationError and wraps anything else
// planWriteError maps a unique key violation that slipped past the ByNaturalKey check
// (a concurrent scrape or request) to ErrPlanAlreadyExists
func planWriteError(err error, code, message string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPlanAlreadyExists
	}
	return validationOr(err, code, message)
}

func validationOr(err error, code, message string) error {
	if ve := ValidationErrorFrom(err); ve != nil {
		return ve
	}
	return NewBusinessError(code, message, err)
}
