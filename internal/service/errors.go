package service

import (
    "errors"

    "github.com/iliyamo/event-ticketing/internal/repository"
)

var (
    ErrInvalidQuantity   = errors.New("invalid quantity")
    ErrDuplicateRequest  = errors.New("duplicate request")
    ErrNotBookable       = errors.New("category is not on sale")
    ErrInvalidTransition = errors.New("booking cannot change to the requested status")
    ErrInvalidCallback   = errors.New("invalid payment callback")

    // Aliases of the repository sentinels.
    ErrInsufficientInventory = repository.ErrInsufficientInventory
    ErrAlreadyStarted        = repository.ErrAlreadyStarted
)
