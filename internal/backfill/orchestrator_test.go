package backfill

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/directory"
	"github.com/sells-group/phonelink/internal/identity"
	"github.com/sells-group/phonelink/internal/metrics"
	"github.com/sells-group/phonelink/internal/model"
)

func TestRun_DryRunScenario(t *testing.T) {
	dir := directory.NewMemory(model.User{ID: "u1", Phone: "0912345678"})
	accounts := identity.NewMemory()

	res, err := New(accounts, dir).Run(context.Background(), Request{Domain: "ex.com", DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Planned)
	require.Len(t, res.Items, 1)
	assert.Equal(t, model.Outcome{ID: "u1", Phone: "+886912345678", Email: "p886912345678@ex.com", Kind: model.OutcomePlanned}, res.Items[0])

	u, err := dir.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Email)
	assert.Zero(t, accounts.Calls())
}

func TestRun_CreateScenarioAndIdempotence(t *testing.T) {
	dir := directory.NewMemory(model.User{ID: "u1", Phone: "0912345678"})
	accounts := identity.NewMemory()
	o := New(accounts, dir)

	res, err := o.Run(context.Background(), Request{Domain: "ex.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, model.OutcomeCreated, res.Items[0].Kind)

	a, err := accounts.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "p886912345678@ex.com", a.Email)
	assert.Equal(t, "+886912345678", a.PhoneNumber)
	assert.Regexp(t, `^Temp[0-9a-z]{8}!1$`, accounts.Password("u1"))

	u, err := dir.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "p886912345678@ex.com", u.Email)

	again, err := o.Run(context.Background(), Request{Domain: "ex.com"})
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
	assert.Zero(t, again.Created+again.Updated)
	assert.NotEqual(t, res.RunID, again.RunID)
}

func TestRun_PasswordIsTrimmed(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     string
	}{
		{"padded short password falls back to generated", "  abc  ", "TempGENERATED!1"},
		{"whitespace only falls back to generated", " \t ", "TempGENERATED!1"},
		{"padded long password is stored trimmed", "  secret1 ", "secret1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := directory.NewMemory(model.User{ID: "u1", Phone: "0912345678"})
			accounts := identity.NewMemory()
			o := New(accounts, dir, WithPasswordFunc(func() (string, error) { return "TempGENERATED!1", nil }))

			res, err := o.Run(context.Background(), Request{Domain: "ex.com", Password: tt.password})
			require.NoError(t, err)
			require.Equal(t, 1, res.Created)
			assert.Equal(t, tt.want, accounts.Password("u1"))
		})
	}
}

func TestRun_DuplicatePhoneYieldsConflict(t *testing.T) {
	dir := directory.NewMemory(
		model.User{ID: "u1", Phone: "0912345678"},
		model.User{ID: "u2", Phone: "+886 912-345-678"},
	)
	accounts := identity.NewMemory()

	res, err := New(accounts, dir, WithConcurrency(1)).Run(context.Background(), Request{Domain: "ex.com", Password: "secret1"})
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, model.OutcomeCreated, res.Items[0].Kind)
	assert.Equal(t, model.OutcomeConflict, res.Items[1].Kind)
	assert.Equal(t, "email-already-exists", res.Items[1].Detail)
	assert.Equal(t, 1, res.Conflicts)

	u2, err := dir.Get(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, u2.Email)
}

func TestRun_LimitBoundaries(t *testing.T) {
	seed := func() *directory.MemoryStore {
		return directory.NewMemory(
			model.User{ID: "u1", Phone: "0911111111"},
			model.User{ID: "u2", Phone: "0922222222"},
		)
	}
	for _, limit := range []int{0, 2, 10} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			res, err := New(identity.NewMemory(), seed()).Run(context.Background(), Request{Domain: "ex.com", DryRun: true, Limit: limit})
			require.NoError(t, err)
			assert.Equal(t, 2, res.Processed)
		})
	}

	res, err := New(identity.NewMemory(), seed()).Run(context.Background(), Request{Domain: "ex.com", DryRun: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func TestRun_ItemsFollowCandidateOrder(t *testing.T) {
	var users []model.User
	var want []string
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("u%03d", i)
		users = append(users, model.User{ID: id, Phone: fmt.Sprintf("09%08d", i)})
		want = append(want, id)
	}
	res, err := New(identity.NewMemory(), directory.NewMemory(users...), WithConcurrency(7)).
		Run(context.Background(), Request{Domain: "ex.com", Password: "secret1"})
	require.NoError(t, err)

	got := make([]string, len(res.Items))
	for i, it := range res.Items {
		got[i] = it.ID
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 60, res.Created)
}

func TestRun_MixedOutcomes(t *testing.T) {
	dir := directory.NewMemory(
		model.User{ID: "a", Phone: "0911111111"},
		model.User{ID: "b", Phone: "0922222222"},
		model.User{ID: "c", Phone: "xyz"},
		model.User{ID: "d", Phone: "0944444444", CommunityScope: "Z9"},
	)
	accounts := identity.NewMemory(model.Account{ID: "b"})

	res, err := New(accounts, dir).Run(context.Background(), Request{Domain: "ex.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 1, res.Failures())

	scoped, err := New(accounts, directory.NewMemory(model.User{ID: "d", Phone: "0944444444", CommunityScope: "Z9"}, model.User{ID: "e", Phone: "0955555555"})).
		Run(context.Background(), Request{Domain: "ex.com", DryRun: true, Community: "Z9"})
	require.NoError(t, err)
	require.Len(t, scoped.Items, 1)
	assert.Equal(t, "d", scoped.Items[0].ID)
}

func TestRun_Validation(t *testing.T) {
	o := New(identity.NewMemory(), directory.NewMemory())

	_, err := o.Run(context.Background(), Request{Domain: "  "})
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	res, err := o.Run(context.Background(), Request{Domain: "@ex.com"})
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.NotNil(t, res.Items)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Run(ctx, Request{Domain: "ex.com"})
	assert.Error(t, err)
}

func TestRun_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	dir := directory.NewMemory(
		model.User{ID: "u1", Phone: "0911111111"},
		model.User{ID: "u2", Phone: "bad"},
	)
	_, err := New(identity.NewMemory(), dir, WithMetrics(m)).Run(context.Background(), Request{Domain: "ex.com", DryRun: true})
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Outcomes.WithLabelValues("backfill", "planned")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Outcomes.WithLabelValues("backfill", "invalid")), 0)
}

func TestRunLinkPhones(t *testing.T) {
	dir := directory.NewMemory(
		model.User{ID: "u1", Phone: "0911111111", Email: "u1@ex.com"},
		model.User{ID: "u2", Phone: "0922222222"},
		model.User{ID: "u3", Phone: "0933333333"},
	)
	accounts := identity.NewMemory(
		model.Account{ID: "u1", Email: "u1@ex.com"},
		model.Account{ID: "u3"},
		model.Account{ID: "holder", PhoneNumber: "+886933333333"},
	)
	res, err := New(accounts, dir).RunLinkPhones(context.Background(), LinkRequest{})
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	assert.Equal(t, model.OutcomeLinked, res.Items[0].Kind)
	assert.Equal(t, model.OutcomeNotFound, res.Items[1].Kind)
	assert.Equal(t, model.OutcomeConflict, res.Items[2].Kind)
	assert.Equal(t, 1, res.Linked)

	u2, err := dir.Get(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, u2.Email, "linking never writes the directory")

	dry, err := New(accounts, dir).RunLinkPhones(context.Background(), LinkRequest{DryRun: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, dry.Planned)
}
