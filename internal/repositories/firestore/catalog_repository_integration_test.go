//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	pconfig "github.com/Prathaban-G/ecommerce/internal/platform/config"
	pfirestore "github.com/Prathaban-G/ecommerce/internal/platform/firestore"
	"github.com/Prathaban-G/ecommerce/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func TestCatalogRepositoriesIntegration(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })
	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "storefront-test",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}
	if err := provider.Ping(ctx, CategoriesCollection); err != nil {
		t.Fatalf("ping empty collection: %v", err)
	}

	seed := map[string]map[string]any{
		"toys":  {"name": "Toys", "rank": 3, "isNew": true, "imageUrl": "https://img/toys.png"},
		"games": {"name": "Games", "rank": 7},
	}
	for id, data := range seed {
		if _, err := client.Collection(CategoriesCollection).Doc(id).Set(ctx, data); err != nil {
			t.Fatalf("seed category %s: %v", id, err)
		}
	}
	items := client.Collection(CategoriesCollection + "/toys/" + ItemsSubcollection)
	if _, err := items.Doc("car").Set(ctx, map[string]any{
		"name": "Car", "price": 100, "discount": 10, "rank": 1, "stock": 0,
		"imageUrl": "https://img/car-front.png", "imageUrl2": "https://img/car-side.png",
	}); err != nil {
		t.Fatalf("seed car: %v", err)
	}
	if _, err := items.Doc("doll").Set(ctx, map[string]any{
		"name": "Doll", "price": 49.5, "rank": 2, "stock": 20,
		"imageUrls": []string{"https://img/doll.png"},
	}); err != nil {
		t.Fatalf("seed doll: %v", err)
	}

	categoryRepo, err := NewCategoryRepository(provider)
	if err != nil {
		t.Fatalf("new category repository: %v", err)
	}
	itemRepo, err := NewItemRepository(provider)
	if err != nil {
		t.Fatalf("new item repository: %v", err)
	}

	categories, err := categoryRepo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories got %d", len(categories))
	}

	toys, err := categoryRepo.GetCategory(ctx, "toys")
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if toys.Name != "Toys" || toys.Rank != 3 || !toys.IsNew {
		t.Fatalf("unexpected category %+v", toys)
	}

	_, err = categoryRepo.GetCategory(ctx, "missing")
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found repository error got %v", err)
	}

	raw, err := itemRepo.ListItems(ctx, "toys")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	byID := make(map[string]int, len(raw))
	for i, item := range raw {
		byID[item.ID] = i
	}
	car := raw[byID["car"]]
	if car.Price != 100 || car.Discount != 10 || car.Images.Primary != "https://img/car-front.png" {
		t.Fatalf("unexpected car %+v", car)
	}
	doll := raw[byID["doll"]]
	if doll.Price != 49.5 || len(doll.Images.URLs) != 1 {
		t.Fatalf("unexpected doll %+v", doll)
	}

	empty, err := itemRepo.ListItems(ctx, "games")
	if err != nil {
		t.Fatalf("list empty items: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no items got %d", len(empty))
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	out, err := exec.Command("docker",
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	).CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "docker", "stop", id).Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("emulator did not become ready: %v", lastErr)
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}
