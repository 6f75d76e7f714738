package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mittera/rolltrack_backend/config"
	"github.com/mittera/rolltrack_backend/models"
	"github.com/mittera/rolltrack_backend/utils"
)

func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	pgName, pgPort := startPostgresContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(pgName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DATABASE_URL", fmt.Sprintf(
		"host=127.0.0.1 port=%s user=postgres password=testpw dbname=rolltrack_test sslmode=disable", pgPort))

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	return context.Background()
}

func TestRollLifecycle(t *testing.T) {
	ctx := setupIntegration(t)

	// Create
	roll, err := models.CreateRoll(ctx, &models.NewRoll{
		RollID:       " r100 ",
		MaterialType: "KraftPaper",
		Weight:       2945,
		Warehouse:    "WH1",
		SubLocation:  "02",
	})
	if err != nil {
		t.Fatalf("CreateRoll: %v", err)
	}
	if roll.RollID != "R100" {
		t.Fatalf("roll id not normalized: %q", roll.RollID)
	}
	if roll.Warehouse != models.WarehouseWH1 || roll.SubLocation != "02" {
		t.Fatalf("unexpected initial location: %s/%s", roll.Warehouse, roll.SubLocation)
	}

	// Duplicate id (normalized comparison) leaves the store unchanged.
	if _, err := models.CreateRoll(ctx, &models.NewRoll{
		RollID: "R100", MaterialType: "Other", Weight: 1, Warehouse: "WH2", SubLocation: "20",
	}); err != models.ErrDuplicateID {
		t.Fatalf("duplicate create: expected ErrDuplicateID, got %v", err)
	}
	got, err := models.GetRoll(ctx, "r100")
	if err != nil {
		t.Fatalf("GetRoll after duplicate create: %v", err)
	}
	if got.MaterialType != "KraftPaper" || got.Warehouse != models.WarehouseWH1 {
		t.Fatalf("duplicate create mutated the roll: %+v", got)
	}

	// Birth ledger entry: from side equals the initial location.
	history, err := models.ListMovementsForRoll(ctx, "R100")
	if err != nil {
		t.Fatalf("ListMovementsForRoll: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 movement after create, got %d", len(history))
	}
	add := history[0]
	if add.Action != models.ActionAdd ||
		add.FromWarehouse != models.WarehouseWH1 || add.FromSubLocation != "02" ||
		add.ToWarehouse != models.WarehouseWH1 || add.ToSubLocation != "02" {
		t.Fatalf("unexpected ADD movement: %+v", add)
	}

	// Rejected transition: invalid sub-location leaves roll and ledger alone.
	if _, err := models.MoveRoll(ctx, "R100", "WH2", "31", models.ActionTransfer, nil); err != models.ErrInvalidLocation {
		t.Fatalf("move to WH2/31: expected ErrInvalidLocation, got %v", err)
	}
	if history, _ = models.ListMovementsForRoll(ctx, "R100"); len(history) != 1 {
		t.Fatalf("rejected move appended a movement")
	}

	// Directional transfer asserts the stated source.
	if _, err := models.TransferRoll(ctx, "R100", "WH2", "WH1", "02"); err != models.ErrLocationMismatch {
		t.Fatalf("transfer with wrong source: expected ErrLocationMismatch, got %v", err)
	}

	// Cross-warehouse transfer.
	moved, err := models.TransferRoll(ctx, "R100", "WH1", "WH2", "22")
	if err != nil {
		t.Fatalf("TransferRoll: %v", err)
	}
	if moved.Warehouse != models.WarehouseWH2 || moved.SubLocation != "22" {
		t.Fatalf("unexpected location after transfer: %s/%s", moved.Warehouse, moved.SubLocation)
	}
	history, _ = models.ListMovementsForRoll(ctx, "R100")
	if len(history) != 2 {
		t.Fatalf("expected 2 movements after transfer, got %d", len(history))
	}
	tr := history[1]
	if tr.Action != models.ActionTransfer ||
		tr.FromWarehouse != models.WarehouseWH1 || tr.FromSubLocation != "02" ||
		tr.ToWarehouse != models.WarehouseWH2 || tr.ToSubLocation != "22" {
		t.Fatalf("unexpected TRANSFER movement: %+v", tr)
	}

	// Batch remove with one missing id: partial success. The same roll
	// scanned twice in different forms collapses to a single move.
	result, err := models.BatchMoveRolls(ctx, []string{"R100", "r100 ", "R999"}, "USED", "", models.ActionBatchRemove)
	if err != nil {
		t.Fatalf("BatchMoveRolls: %v", err)
	}
	if len(result.Moved) != 1 || result.Moved[0] != "R100" {
		t.Fatalf("unexpected moved list: %v", result.Moved)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "R999" {
		t.Fatalf("unexpected missing list: %v", result.Missing)
	}
	got, _ = models.GetRoll(ctx, "R100")
	if got.Warehouse != models.WarehouseUsed || got.SubLocation != "" {
		t.Fatalf("batch remove did not land in USED: %s/%q", got.Warehouse, got.SubLocation)
	}
	history, _ = models.ListMovementsForRoll(ctx, "R100")
	if len(history) != 3 {
		t.Fatalf("expected 3 movements after deduped batch, got %d", len(history))
	}

	// Terminal to terminal is disallowed.
	if _, err := models.ConsumeRoll(ctx, "R100"); err != models.ErrAlreadyTerminal {
		t.Fatalf("consume of USED roll: expected ErrAlreadyTerminal, got %v", err)
	}

	// A second batch against an already-terminal roll skips it.
	again, err := models.BatchMoveRolls(ctx, []string{"R100"}, "USED", "", models.ActionBatchRemove)
	if err != nil {
		t.Fatalf("BatchMoveRolls (terminal id): %v", err)
	}
	if len(again.Moved) != 0 || len(again.Missing) != 0 {
		t.Fatalf("terminal id must not move or go missing: %+v", again)
	}
	if len(again.Skipped) != 1 || again.Skipped[0] != "R100" {
		t.Fatalf("unexpected skipped list: %v", again.Skipped)
	}

	// Restore clears the terminal state.
	restored, err := models.RestoreRoll(ctx, "R100", "WH1", "03")
	if err != nil {
		t.Fatalf("RestoreRoll: %v", err)
	}
	if restored.Warehouse != models.WarehouseWH1 || restored.SubLocation != "03" {
		t.Fatalf("unexpected location after restore: %s/%s", restored.Warehouse, restored.SubLocation)
	}
	// Restore of a roll already in a warehouse fails the source assertion.
	if _, err := models.RestoreRoll(ctx, "R100", "WH2", "20"); err != models.ErrLocationMismatch {
		t.Fatalf("restore of non-terminal roll: expected ErrLocationMismatch, got %v", err)
	}

	// Material/weight-only edit appends no movement.
	before, _ := models.ListMovementsForRoll(ctx, "R100")
	edited, err := models.EditRoll(ctx, "R100", &models.EditRollInput{
		MaterialType: "KraftPaperHeavy", Weight: 3000, Warehouse: "WH1", SubLocation: "03",
	})
	if err != nil {
		t.Fatalf("EditRoll (no location change): %v", err)
	}
	if edited.MaterialType != "KraftPaperHeavy" || edited.Weight != 3000 {
		t.Fatalf("edit did not apply: %+v", edited)
	}
	after, _ := models.ListMovementsForRoll(ctx, "R100")
	if len(after) != len(before) {
		t.Fatalf("material/weight edit appended a movement")
	}

	// Location-changing edit appends EDIT_MOVE.
	if _, err := models.EditRoll(ctx, "R100", &models.EditRollInput{
		MaterialType: "KraftPaperHeavy", Weight: 3000, Warehouse: "WH1", SubLocation: "05",
	}); err != nil {
		t.Fatalf("EditRoll (location change): %v", err)
	}
	after, _ = models.ListMovementsForRoll(ctx, "R100")
	if len(after) != len(before)+1 || after[len(after)-1].Action != models.ActionEditMove {
		t.Fatalf("expected trailing EDIT_MOVE movement, got %+v", after[len(after)-1])
	}

	// Delete logs first, then removes the roll; history stays queryable.
	if _, err := models.DeleteRoll(ctx, "R100"); err != nil {
		t.Fatalf("DeleteRoll: %v", err)
	}
	if _, err := models.GetRoll(ctx, "R100"); err != models.ErrRollNotFound {
		t.Fatalf("get after delete: expected ErrRollNotFound, got %v", err)
	}
	final, _ := models.ListMovementsForRoll(ctx, "R100")
	if len(final) == 0 || final[len(final)-1].Action != models.ActionDelete {
		t.Fatalf("expected trailing DELETE movement")
	}
}

func TestInventoryListingAndTotals(t *testing.T) {
	ctx := setupIntegration(t)

	seed := []models.NewRoll{
		{RollID: "A1", MaterialType: "Newsprint", Weight: 100, Warehouse: "WH1", SubLocation: "04"},
		{RollID: "A2", MaterialType: "Coated", Weight: 200, Warehouse: "WH1", SubLocation: "02"},
		{RollID: "A3", MaterialType: "Coated", Weight: 300, Warehouse: "WH1", SubLocation: "04"},
		{RollID: "B1", MaterialType: "Coated", Weight: 400, Warehouse: "WH2", SubLocation: "20"},
	}
	for i := range seed {
		if _, err := models.CreateRoll(ctx, &seed[i]); err != nil {
			t.Fatalf("seed %s: %v", seed[i].RollID, err)
		}
	}

	rolls, totals, err := models.ListRollsWithTotals(ctx, "WH1", nil)
	if err != nil {
		t.Fatalf("ListRollsWithTotals: %v", err)
	}
	if totals.Count != 3 || totals.TotalWeight != 600 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	// ordered by (material_type, sub_location, roll_id)
	wantOrder := []string{"A2", "A3", "A1"}
	for i, want := range wantOrder {
		if rolls[i].RollID != want {
			t.Fatalf("list order[%d] = %s, want %s", i, rolls[i].RollID, want)
		}
	}

	sub := "04"
	rolls, err = models.ListRolls(ctx, "WH1", &sub)
	if err != nil {
		t.Fatalf("ListRolls sub filter: %v", err)
	}
	if len(rolls) != 2 {
		t.Fatalf("expected 2 rolls in WH1/04, got %d", len(rolls))
	}

	// case-insensitive substring search across locations
	found, err := models.SearchRollsByMaterial(ctx, "coat")
	if err != nil {
		t.Fatalf("SearchRollsByMaterial: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 search hits, got %d", len(found))
	}
}

func TestLoginCredentialChecks(t *testing.T) {
	ctx := setupIntegration(t)

	if _, err := models.UpsertUser(ctx, "warehouse", "Warehouse", "pass123"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if _, err := models.Login(ctx, "warehouse", "wrong"); err == nil {
		t.Fatalf("wrong password accepted")
	}
	info, err := models.Login(ctx, "warehouse", "pass123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if info.Token == "" {
		t.Fatalf("login returned empty token")
	}

	// A row with a non-bcrypt stored hash must never authenticate, not
	// even with the stored value itself as the password.
	bad := models.User{Username: "legacy", Name: "Legacy", Password: "not-a-bcrypt-hash", IsActive: utils.NewTrue()}
	if err := config.GetDB().WithContext(ctx).Create(&bad).Error; err != nil {
		t.Fatalf("seed corrupt-hash user: %v", err)
	}
	if _, err := models.Login(ctx, "legacy", "not-a-bcrypt-hash"); err == nil {
		t.Fatalf("corrupt stored hash accepted")
	}
	if _, err := models.Login(ctx, "legacy", "anything"); err == nil {
		t.Fatalf("corrupt stored hash accepted")
	}
}

/* docker helpers */

func startPostgresContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("rolltrack-test-postgres-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "POSTGRES_PASSWORD=testpw",
		"-e", "POSTGRES_DB=rolltrack_test",
		"-p", "127.0.0.1:0:5432",
		"postgres:16-alpine",
	)
	if err != nil {
		t.Fatalf("start postgres container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "pg_isready", "-U", "postgres")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("postgres did not become ready")
	return "", ""
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("rolltrack-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
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
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
