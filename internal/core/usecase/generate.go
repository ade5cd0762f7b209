package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/photoblog-ai/internal/core/aiquery"
	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
)

// FieldResultRecorder counts per-field outcomes: success, degraded or error.
type FieldResultRecorder interface {
	RecordFieldResult(field, outcome string)
}

type GenerateFieldsUseCase struct {
	client   ports.ModelClient
	retrier  ports.CallRetrier
	catalog  aiquery.Catalog
	policies aiquery.DegradePolicies
	recorder FieldResultRecorder
	logger   *slog.Logger
}

func NewGenerateFieldsUseCase(
	client ports.ModelClient,
	retrier ports.CallRetrier,
	catalog aiquery.Catalog,
	policies aiquery.DegradePolicies,
	recorder FieldResultRecorder,
	logger *slog.Logger,
) *GenerateFieldsUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateFieldsUseCase{
		client:   client,
		retrier:  retrier,
		catalog:  catalog,
		policies: policies,
		recorder: recorder,
		logger:   logger,
	}
}

// Generate issues the queries needed for fields and assembles whatever
// succeeded. Failures never abort the other fields; the most recent one is
// reported in the result's Error.
func (uc *GenerateFieldsUseCase) Generate(ctx context.Context, imageBase64 string, fields domain.FieldSet) domain.GeneratedFields {
	var result domain.GeneratedFields
	if strings.TrimSpace(imageBase64) == "" || fields.Empty() || uc.client == nil || !uc.client.Enabled() {
		return result
	}

	wantTitle := fields.Has(domain.FieldTitle)
	wantCaption := fields.Has(domain.FieldCaption)

	if wantTitle && wantCaption {
		raw, err := uc.query(ctx, imageBase64, domain.QueryTitleAndCaption)
		if err != nil {
			uc.fail(&result, domain.QueryTitleAndCaption, err, domain.FieldTitle, domain.FieldCaption)
		} else {
			title, caption, parseErr := uc.policies.TitleAndCaptionFields(raw)
			result.Title = &title
			result.Caption = &caption
			uc.settle(&result, domain.QueryTitleAndCaption, parseErr, domain.FieldTitle, domain.FieldCaption)
		}
	} else {
		if wantTitle {
			result.Title = uc.bilingual(ctx, &result, imageBase64, domain.QueryTitle, domain.FieldTitle)
		}
		if wantCaption {
			result.Caption = uc.bilingual(ctx, &result, imageBase64, domain.QueryCaption, domain.FieldCaption)
		}
	}

	if fields.Has(domain.FieldTags) {
		raw, err := uc.query(ctx, imageBase64, domain.QueryTags)
		if err != nil {
			uc.fail(&result, domain.QueryTags, err, domain.FieldTags)
		} else {
			tags, parseErr := uc.policies.TagsField(raw)
			result.Tags = &tags
			uc.settle(&result, domain.QueryTags, parseErr, domain.FieldTags)
		}
	}

	if fields.Has(domain.FieldSemantic) {
		result.SemanticDescription = uc.bilingual(ctx, &result, imageBase64, domain.QueryDescriptionSmall, domain.FieldSemantic)
	}

	return result
}

func (uc *GenerateFieldsUseCase) bilingual(
	ctx context.Context,
	result *domain.GeneratedFields,
	imageBase64 string,
	kind domain.QueryKind,
	field domain.AutoGeneratedField,
) *string {
	raw, err := uc.query(ctx, imageBase64, kind)
	if err != nil {
		uc.fail(result, kind, err, field)
		return nil
	}
	value, parseErr := uc.policies.BilingualField(raw)
	uc.settle(result, kind, parseErr, field)
	return &value
}

// query runs one model call under the retry policy.
func (uc *GenerateFieldsUseCase) query(ctx context.Context, imageBase64 string, kind domain.QueryKind) (string, error) {
	prompt, ok := uc.catalog.Prompt(kind)
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "lookup prompt", fmt.Errorf("no prompt for %q", kind))
	}

	var text string
	call := func(callCtx context.Context) error {
		out, _, err := uc.client.Generate(callCtx, imageBase64, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, "ai."+string(kind), call)
	} else {
		err = call(ctx)
	}
	return text, err
}

func (uc *GenerateFieldsUseCase) fail(result *domain.GeneratedFields, kind domain.QueryKind, err error, fields ...domain.AutoGeneratedField) {
	result.Error = err.Error()
	uc.logger.Warn("ai_query_failed", "query_kind", string(kind), "error", err)
	uc.record(fields, "error")
}

// settle records a finished call. A parse error keeps the degraded value in
// place and is still reported.
func (uc *GenerateFieldsUseCase) settle(result *domain.GeneratedFields, kind domain.QueryKind, parseErr error, fields ...domain.AutoGeneratedField) {
	if parseErr == nil {
		uc.record(fields, "success")
		return
	}
	result.Error = parseErr.Error()
	uc.logger.Warn("ai_response_degraded", "query_kind", string(kind), "error", parseErr)
	uc.record(fields, "degraded")
}

func (uc *GenerateFieldsUseCase) record(fields []domain.AutoGeneratedField, outcome string) {
	if uc.recorder == nil {
		return
	}
	for _, field := range fields {
		uc.recorder.RecordFieldResult(string(field), outcome)
	}
}
