package instance

import (
	"os"
	"strconv"
	"sync"

	"github.com/vendorhub/marketplace-backend/pkg/env"
)

var (
	once sync.Once
	id   string
)

// GetID names this process in logs and cron lock leases. An explicit
// VENDORHUB_INSTANCE_ID wins; otherwise the container hostname and pid are used.
func GetID() string {
	once.Do(func() {
		if explicit := env.First("VENDORHUB_INSTANCE_ID"); explicit != "" {
			id = explicit
			return
		}
		id = env.Get("HOSTNAME", "local") + "-" + strconv.Itoa(os.Getpid())
	})
	return id
}
