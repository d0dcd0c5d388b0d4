package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run (requires Docker): INTEGRATION_TESTS=1 go test ./models -run Integration -v
func TestIntegration_BillingAndSequences(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "casewise_test")
	t.Setenv("SEQUENCE_REDIS_LOCK", "true")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := signup(t, "ACME", "admin@acme.test")

	t.Run("concurrent sequences are gapless and unique", func(t *testing.T) {
		const n = 20
		// the first call creates the counter row
		first, err := models.NextSequence(ctx, models.SequenceKindCase)
		require.NoError(t, err)
		var (
			mu   sync.Mutex
			got  = []int64{first}
			wg   sync.WaitGroup
			errs = make(chan error, n)
		)
		for i := 1; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := models.NextSequence(ctx, models.SequenceKindCase)
				if err != nil {
					errs <- err
					return
				}
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		require.Len(t, got, n)
		for i, v := range got {
			assert.Equal(t, int64(i+1), v)
		}
		last, err := models.PeekSequence(ctx, models.SequenceKindCase)
		require.NoError(t, err)
		assert.Equal(t, int64(n), last)
	})

	client, err := models.CreateClient(ctx, &models.NewClient{Name: "Jane Roe", Email: "jane@roe.test"})
	require.NoError(t, err)

	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		ClientId: client.ID,
		DueDate:  time.Now().AddDate(0, 0, 30),
		Items: []*models.NewInvoiceItem{
			{Description: "Retainer", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(500)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ACME-INV-000001", invoice.InvoiceNumber)
	assert.True(t, invoice.Total.Equal(decimal.NewFromInt(500)))

	pay := func(amount int64) (*models.Payment, error) {
		return models.RecordPayment(ctx, invoice.ID, &models.NewPayment{
			Amount:      decimal.NewFromInt(amount),
			PaymentDate: time.Now(),
			Method:      models.PaymentMethodBankTransfer,
		})
	}
	status := func() models.InvoiceStatus {
		inv, err := models.GetInvoice(ctx, invoice.ID)
		require.NoError(t, err)
		return inv.Status
	}

	livePayments := func() int {
		rows, err := models.GetInvoicePayments(ctx, invoice.ID)
		require.NoError(t, err)
		return len(rows)
	}

	t.Run("partial then full payment settles the invoice", func(t *testing.T) {
		first, err := pay(300)
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceStatusUnpaid, status())

		_, err = pay(200)
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceStatusPaid, status())

		_, err = pay(1)
		assert.ErrorIs(t, err, utils.ErrInvalidState)
		assert.Equal(t, 2, livePayments())
		assert.Equal(t, models.InvoiceStatusPaid, status())

		_, err = models.DeletePayment(ctx, first.ID)
		require.NoError(t, err)
		inv, err := models.GetInvoice(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceStatusUnpaid, inv.Status)
		require.NotNil(t, inv.AmountPaid)
		assert.True(t, inv.AmountPaid.Equal(decimal.NewFromInt(200)))
		assert.Equal(t, 1, livePayments())
	})

	t.Run("rejected payments leave no row and no status change", func(t *testing.T) {
		for _, amount := range []int64{-10, 0, 301} {
			_, err := pay(amount)
			assert.ErrorIs(t, err, utils.ErrInvalidArgument, amount)
		}
		assert.Equal(t, 1, livePayments())
		assert.Equal(t, models.InvoiceStatusUnpaid, status())
	})

	t.Run("invoice with payments cannot be deleted", func(t *testing.T) {
		_, err := models.DeleteInvoice(ctx, invoice.ID)
		assert.ErrorIs(t, err, utils.ErrInvalidState)
	})

	t.Run("deleted invoices are hidden unless asked for", func(t *testing.T) {
		draft, err := models.CreateInvoice(ctx, &models.NewInvoice{
			ClientId: client.ID,
			DueDate:  time.Now().AddDate(0, 0, 14),
			Items: []*models.NewInvoiceItem{
				{Description: "Filing fee", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(75)},
			},
		})
		require.NoError(t, err)
		_, err = models.DeleteInvoice(ctx, draft.ID)
		require.NoError(t, err)

		ids := func(filter models.InvoiceFilter) []int {
			conn, err := models.ListInvoices(ctx, filter, models.PageInput{Limit: 100})
			require.NoError(t, err)
			var out []int
			for _, inv := range conn.Nodes() {
				out = append(out, inv.ID)
			}
			return out
		}
		assert.NotContains(t, ids(models.InvoiceFilter{}), draft.ID)
		assert.Contains(t, ids(models.InvoiceFilter{IncludeDeleted: true}), draft.ID)
		assert.Contains(t, ids(models.InvoiceFilter{}), invoice.ID)

		_, err = models.GetInvoice(ctx, draft.ID)
		assert.ErrorIs(t, err, utils.ErrNotFound)
	})

	t.Run("mutations leave outbox rows", func(t *testing.T) {
		st, err := models.GetOutboxStatus(ctx, models.EntityTypeInvoice, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, invoice.ID, st.EntityId)
	})

	t.Run("reconcile finds no drift", func(t *testing.T) {
		drifts, err := models.ReconcileInvoices(ctx, true)
		require.NoError(t, err)
		assert.Empty(t, drifts)
	})

	t.Run("other organizations cannot see the invoice", func(t *testing.T) {
		other := signup(t, "OTHER", "admin@other.test")

		_, err := models.GetInvoice(other, invoice.ID)
		assert.ErrorIs(t, err, utils.ErrNotFound)
		_, err = models.RecordPayment(other, invoice.ID, &models.NewPayment{
			Amount: decimal.NewFromInt(10), PaymentDate: time.Now(), Method: models.PaymentMethodCash,
		})
		assert.ErrorIs(t, err, utils.ErrNotFound)
	})
}

func signup(t *testing.T, code, email string) context.Context {
	t.Helper()
	login, err := models.CreateOrganization(context.Background(), &models.NewOrganization{
		Name:          code + " Legal",
		Code:          code,
		AdminName:     "Admin " + code,
		AdminEmail:    email,
		AdminPassword: "password123",
	})
	require.NoError(t, err)

	ctx := utils.SetOrganizationIdInContext(context.Background(), login.OrganizationId)
	ctx = utils.SetUserIdInContext(ctx, login.UserId)
	ctx = utils.SetUserNameInContext(ctx, login.Name)
	return utils.SetUserRoleInContext(ctx, string(login.Role))
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("casewise-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun("run", "-d", "--name", name, "-p", "127.0.0.1:0:6379", "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("casewise-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=casewise_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
