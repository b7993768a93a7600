package worker

import (
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/roster/pkg/ability"
	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/observability"
	"github.com/rosterhq/roster/pkg/orgs"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCleanupRun(t *testing.T) {
	orgService := orgs.NewMemoryService()
	authStore := auth.NewMemoryStore()

	orgService.PutUser(orgs.UserRecord{ID: "user-1", Name: "Alice", Email: "alice@acme.com"})
	org := &orgs.Organization{OwnerID: "user-1", Name: "Acme"}
	require.NoError(t, orgService.CreateOrganization(org))

	// One expired invite, one fresh.
	expired := &orgs.Invite{
		OrganizationID: org.ID,
		AuthorID:       "user-1",
		Email:          "old@globex.com",
		Role:           ability.RoleMember,
		ExpiresAt:      time.Now().Add(-time.Hour),
	}
	require.NoError(t, orgService.CreateInvite(expired))
	fresh := &orgs.Invite{
		OrganizationID: org.ID,
		AuthorID:       "user-1",
		Email:          "new@globex.com",
		Role:           ability.RoleMember,
	}
	require.NoError(t, orgService.CreateInvite(fresh))

	// One expired session, one fresh.
	user := &auth.User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, authStore.CreateUser(user, "s3cret"))
	_, _, err := authStore.CreateSession(user.ID, time.Nanosecond)
	require.NoError(t, err)
	_, liveToken, err := authStore.CreateSession(user.ID, time.Hour)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	worker := NewCleanupWorker("@hourly", orgService, authStore, quietLogger(), metrics)
	worker.Run()

	invites, err := orgService.ListInvites(org.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, "new@globex.com", invites[0].Email)

	_, err = authStore.ResolveToken(liveToken)
	assert.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InvitesExpired))
}

func TestCleanupStartStop(t *testing.T) {
	worker := NewCleanupWorker("@hourly", orgs.NewMemoryService(), auth.NewMemoryStore(), quietLogger(), nil)
	require.NoError(t, worker.Start())
	worker.Stop()
}

func TestCleanupBadSchedule(t *testing.T) {
	worker := NewCleanupWorker("not a schedule", orgs.NewMemoryService(), auth.NewMemoryStore(), quietLogger(), nil)
	assert.Error(t, worker.Start())
}
