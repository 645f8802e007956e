package controllers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
)

func parseBodyUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s", field))
	}
	return id, nil
}
