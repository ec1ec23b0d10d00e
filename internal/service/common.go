package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-portal-api/internal/models"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/middleware/requestid"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// dashboardInvalidator drops cached per-student read models after writes.
type dashboardInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string)
}

// auditTrail records transitions without failing the caller.
type auditTrail struct {
	sink   auditLogger
	logger *zap.Logger
}

func (a auditTrail) emit(ctx context.Context, log *models.AuditLog) {
	if a.sink == nil || log == nil {
		return
	}
	log.RequestID = requestid.FromContext(ctx)
	if err := a.sink.CreateAuditLog(ctx, log); err != nil && a.logger != nil {
		a.logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

// authorize returns a forbidden error unless the actor holds every capability.
func authorize(actor *models.Actor, caps ...models.Capability) error {
	if actor == nil || actor.SubjectID == "" {
		return appErrors.ErrUnauthorized
	}
	for _, c := range caps {
		if !actor.Can(c) {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("missing capability %s", c))
		}
	}
	return nil
}

// readScope returns the batch ids a scoped read is limited to. A nil slice
// means unrestricted.
func readScope(actor *models.Actor) []string {
	if actor.Scope == models.ScopeAll {
		return nil
	}
	if actor.BatchIDs == nil {
		return []string{}
	}
	return actor.BatchIDs
}

func inScope(actor *models.Actor, batchID string) bool {
	scope := readScope(actor)
	if scope == nil {
		return true
	}
	for _, id := range scope {
		if id == batchID {
			return true
		}
	}
	return false
}

// invalid converts validator failures into a ValidationError naming the
// offending fields.
func invalid(err error, message string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		message = fmt.Sprintf("%s: %s", message, strings.Join(fields, ", "))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// newValidator reports field names as their JSON keys.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func storeFailure(err error, message string) error {
	return appErrors.Store(err, message)
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

func auditValues(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func stringPtr(v string) *string {
	return &v
}
