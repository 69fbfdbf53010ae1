package speechgen

import (
	"os"
	"testing"

	"github.com/debate-arena/debate-arena-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("development", "error")
	os.Exit(m.Run())
}
