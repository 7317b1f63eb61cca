package memory_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"expenses/internal/backend"
	"expenses/internal/backend/storetest"
	"expenses/internal/memory"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storetest.StoreSuite{
		Open: func(*testing.T) backend.Store { return memory.New(memory.DefaultCategories) },
	})
}
