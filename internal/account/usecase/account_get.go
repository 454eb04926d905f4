package usecase

import (
	"context"

	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
)

type AccountGetInput struct {
	IdentityKey string `validate:"required,max=320"`
}

func (s *Usecase) AccountGet(ctx context.Context, in AccountGetInput) (*entity.Account, error) {
	ctx, span := s.startSpan(ctx, "AccountGet")
	defer span.End()

	in.IdentityKey = entity.NormalizeIdentityKey(in.IdentityKey)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	return s.getAccount(ctx, in.IdentityKey)
}
