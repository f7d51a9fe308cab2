package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
	log "github.com/sirupsen/logrus"
)

// GrantRequest describes allowances to provision for one card.
type GrantRequest struct {
	SerialNumber string `json:"serialNumber" validate:"required,hexadecimal"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Type         string `json:"type" validate:"required"`
	Days         int    `json:"days" validate:"omitempty,min=1,max=366"`
}

// ProvisionService creates cards and allowances; scanning never does.
type ProvisionService struct {
	cards      CardRepo
	allowances AllowanceRepo
	validate   *validator.Validate
}

func NewProvisionService(repos Repositories) *ProvisionService {
	return &ProvisionService{
		cards:      repos.Cards,
		allowances: repos.Allowances,
		validate:   newValidator(),
	}
}

func (s *ProvisionService) CreateCard(ctx context.Context, serial string) (*models.Card, error) {
	uid := NormalizeSerial(serial)
	if err := s.validate.Var(uid, "required,hexadecimal"); err != nil {
		return nil, fmt.Errorf("%w: card serial %q", ErrInvalidInput, serial)
	}

	card, err := s.cards.CreateCard(ctx, uid)
	if err != nil {
		return nil, storageErr("create card", err)
	}

	log.Infof("card provisioned: %s", card.CardUID)
	return card, nil
}

// Grant provisions req.Days consecutive allowances starting at req.Date (one when
// Days is zero). Days that already have the allowance are skipped. It returns the
// allowances it created.
func (s *ProvisionService) Grant(ctx context.Context, req GrantRequest) ([]*models.Allowance, error) {
	req.SerialNumber = NormalizeSerial(req.SerialNumber)
	req.Type = NormalizeType(req.Type)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validationMessage(err))
	}

	card, err := s.cards.GetCardByUID(ctx, req.SerialNumber)
	if err != nil {
		return nil, storageErr("find card", err)
	}

	start, _ := time.Parse(dateLayout, req.Date)
	days := req.Days
	if days == 0 {
		days = 1
	}

	var created []*models.Allowance
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(dateLayout)
		a, err := s.allowances.CreateAllowance(ctx, card.ID, date, req.Type)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) && days > 1 {
				continue
			}
			return created, storageErr("create allowance", err)
		}
		created = append(created, a)
	}

	log.Infof("granted %d %s allowance(s) to %s from %s", len(created), req.Type, card.CardUID, req.Date)
	return created, nil
}

func (s *ProvisionService) Allowances(ctx context.Context, serial string) ([]*models.Allowance, error) {
	card, err := s.cards.GetCardByUID(ctx, NormalizeSerial(serial))
	if err != nil {
		return nil, storageErr("find card", err)
	}

	allowances, err := s.allowances.ListAllowances(ctx, card.ID)
	if err != nil {
		return nil, storageErr("list allowances", err)
	}
	return allowances, nil
}
