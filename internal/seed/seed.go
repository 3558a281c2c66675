// Package seed carga usuarios de demostración cuando el almacén está vacío.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"user-service/internal/domain"
	"user-service/internal/repository"
	"user-service/internal/service"
)

// DefaultPassword es la contraseña de todos los usuarios de demostración.
const DefaultPassword = "password123"

type sequenceSyncer interface {
	SyncIDSequence(ctx context.Context) error
}

// Users devuelve los usuarios de demostración con ids fijos, compartidos con
// otros servicios del ecosistema.
func Users() []domain.User {
	return []domain.User{
		{ID: 1, Username: "john_doe", Email: "john.doe@example.com", FirstName: "John", LastName: "Doe", Address: "123 Main St, Anytown, ST 12345", PhoneNumber: "+1-555-0101"},
		{ID: 2, Username: "jane_smith", Email: "jane.smith@example.com", FirstName: "Jane", LastName: "Smith", Address: "456 Oak Ave, Springfield, IL 62701", PhoneNumber: "+1-555-0102"},
		{ID: 3, Username: "bob_wilson", Email: "bob.wilson@example.com", FirstName: "Bob", LastName: "Wilson", Address: "789 Pine Rd, Austin, TX 78701", PhoneNumber: "+1-555-0103"},
		{ID: 4, Username: "alice_johnson", Email: "alice.johnson@example.com", FirstName: "Alice", LastName: "Johnson", Address: "321 Elm St, Denver, CO 80201", PhoneNumber: "+1-555-0104"},
		{ID: 5, Username: "charlie_brown", Email: "charlie.brown@example.com", FirstName: "Charlie", LastName: "Brown", Address: "654 Maple Dr, Seattle, WA 98101", PhoneNumber: "+1-555-0105"},
		{ID: 6, Username: "diana_clark", Email: "diana.clark@example.com", FirstName: "Diana", LastName: "Clark", Address: "987 Cedar Ln, Portland, OR 97201", PhoneNumber: "+1-555-0106"},
		{ID: 7, Username: "frank_miller", Email: "frank.miller@example.com", FirstName: "Frank", LastName: "Miller", Address: "147 Birch Ave, Miami, FL 33101", PhoneNumber: "+1-555-0107"},
		{ID: 8, Username: "grace_lee", Email: "grace.lee@example.com", FirstName: "Grace", LastName: "Lee", Address: "258 Willow St, Boston, MA 02101", PhoneNumber: "+1-555-0108"},
	}
}

// Load guarda los usuarios de demostración sólo si el almacén no tiene usuarios.
// Devuelve cuántos usuarios se crearon.
func Load(ctx context.Context, users repository.UserRepository, hasher service.PasswordHasher, logger *zap.Logger) (int, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		logger.Debug("seed skipped, store not empty", zap.Int64("users", count))
		return 0, nil
	}

	now := time.Now().UTC()
	created := 0
	for _, u := range Users() {
		digest, err := hasher.Hash(DefaultPassword)
		if err != nil {
			return created, fmt.Errorf("hash seed password: %w", err)
		}
		u.PasswordHash = digest
		u.CreatedAt = now
		u.UpdatedAt = now
		if _, err := users.Save(ctx, u); err != nil {
			return created, fmt.Errorf("save seed user %s: %w", u.Username, err)
		}
		created++
	}

	if syncer, ok := users.(sequenceSyncer); ok {
		if err := syncer.SyncIDSequence(ctx); err != nil {
			return created, fmt.Errorf("sync id sequence: %w", err)
		}
	}
	logger.Info("seed data loaded", zap.Int("users", created))
	return created, nil
}
