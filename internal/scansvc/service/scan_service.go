package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
	log "github.com/sirupsen/logrus"
)

// ScanRequest is what a reader sends for one tap.
type ScanRequest struct {
	SerialNumber string `json:"serialNumber" validate:"required"`
	Date         string `json:"date" validate:"required"`
	Type         string `json:"type" validate:"required"`
}

// Outcome is the decided result of a scan. Message carries the same text that was
// appended to the event log.
type Outcome struct {
	Success bool
	Message string
	Usage   *models.Usage
}

var requiredMessages = map[string]string{
	"serialNumber": "serial number required",
	"date":         "date required",
	"type":         "type required",
}

// Alerter tells operators that scanning is degraded. key groups repeated alerts.
type Alerter interface {
	Alert(key, message string)
}

type ScanService struct {
	cards      CardRepo
	allowances AllowanceRepo
	usages     UsageRepo
	events     *EventService
	loc        *time.Location
	validate   *validator.Validate
	alerter    Alerter
}

func NewScanService(repos Repositories, events *EventService, loc *time.Location) *ScanService {
	if loc == nil {
		loc = time.UTC
	}
	return &ScanService{
		cards:      repos.Cards,
		allowances: repos.Allowances,
		usages:     repos.Usages,
		events:     events,
		loc:        loc,
		validate:   newValidator(),
	}
}

func (s *ScanService) SetAlerter(a Alerter) {
	s.alerter = a
}

// Scan redeems the allowance of req.SerialNumber for req.Type on the request's
// calendar date. Every call appends exactly one event. Domain rejections come back as
// an Outcome with Success false and a nil error; the error is only set (wrapping
// ErrStorageFailure) when the store could not be consulted.
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (*Outcome, error) {
	req.SerialNumber = NormalizeSerial(req.SerialNumber)
	req.Type = NormalizeType(req.Type)
	req.Date = strings.TrimSpace(req.Date)

	if err := s.validate.Struct(req); err != nil {
		return s.reject(ctx, req, validationMessage(err)), nil
	}

	serial := req.SerialNumber
	date, err := CalendarDate(req.Date, s.loc)
	if err != nil {
		return s.reject(ctx, req, fmt.Sprintf("invalid date %s", req.Date)), nil
	}

	card, err := s.cards.GetCardByUID(ctx, serial)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.reject(ctx, req, fmt.Sprintf("card %s not found", serial)), nil
		}
		return s.storageFailure(ctx, req, storageErr("find card", err))
	}

	allowance, err := s.allowances.GetAllowance(ctx, card.ID, date, req.Type)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.reject(ctx, req, fmt.Sprintf("card %s does not have allowance for %s on %s", serial, req.Type, date)), nil
		}
		return s.storageFailure(ctx, req, storageErr("find allowance", err))
	}

	usage, created, err := s.usages.CreateUsageIfUnused(ctx, allowance.ID)
	if err != nil {
		return s.storageFailure(ctx, req, storageErr("create usage", err))
	}
	if !created {
		usedAt := usage.CreatedAt.In(s.loc).Format("2006-01-02 15:04:05")
		out := s.reject(ctx, req, fmt.Sprintf("card %s already used %s on %s at %s", serial, req.Type, date, usedAt))
		out.Usage = usage
		return out, nil
	}

	msg := SuccessPrefix + fmt.Sprintf("Used %s on %s for %s", req.Type, date, serial)
	s.events.record(ctx, msg)
	log.WithFields(log.Fields{
		"card":  serial,
		"type":  req.Type,
		"date":  date,
		"usage": usage.ID,
	}).Info("allowance redeemed")

	return &Outcome{Success: true, Message: msg, Usage: usage}, nil
}

func (s *ScanService) reject(ctx context.Context, req ScanRequest, reason string) *Outcome {
	msg := ErrorPrefix + reason
	s.events.record(ctx, msg)
	log.WithFields(log.Fields{
		"card": req.SerialNumber,
		"type": req.Type,
		"date": req.Date,
	}).Infof("scan rejected: %s", reason)
	return &Outcome{Message: msg}
}

func (s *ScanService) storageFailure(ctx context.Context, req ScanRequest, err error) (*Outcome, error) {
	msg := ErrorPrefix + fmt.Sprintf("storage failure while scanning %s", req.SerialNumber)
	s.events.record(ctx, msg)
	log.WithFields(log.Fields{
		"card": req.SerialNumber,
		"type": req.Type,
		"date": req.Date,
	}).Errorf("scan failed: %v", err)
	if s.alerter != nil {
		s.alerter.Alert("scan-storage", fmt.Sprintf("nfc-meals: %v (card %s)", err, req.SerialNumber))
	}
	return &Outcome{Message: msg}, err
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage reports the first failing field the way the reader UI expects.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		if msg, ok := requiredMessages[field]; ok && verrs[0].Tag() == "required" {
			return msg
		}
		return fmt.Sprintf("%s is invalid (%s)", field, verrs[0].Tag())
	}
	return err.Error()
}
