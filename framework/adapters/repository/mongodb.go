package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akriventsev/sportstore/framework/core"
)

// MongoConfig конфигурация для MongoDB репозитория
type MongoConfig struct {
	Collection string
}

// Validate проверяет корректность конфигурации
func (c MongoConfig) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	return nil
}

// MongoRepository generic MongoDB репозиторий. Документ хранит сущность в
// поле data в виде, совпадающем с ее JSON представлением.
type MongoRepository[T Entity] struct {
	config     MongoConfig
	collection *mongo.Collection
}

type mongoDocument struct {
	ID        string    `bson:"_id"`
	Data      bson.Raw  `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewMongoRepository создает репозиторий поверх базы данных общего клиента
func NewMongoRepository[T Entity](db *mongo.Database, config MongoConfig) (*MongoRepository[T], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}
	return &MongoRepository[T]{
		config:     config,
		collection: db.Collection(config.Collection),
	}, nil
}

// Name возвращает имя компонента (реализация core.Component)
func (m *MongoRepository[T]) Name() string {
	return "mongodb-repository"
}

// Type возвращает тип компонента (реализация core.Component)
func (m *MongoRepository[T]) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// Save сохраняет entity (upsert)
func (m *MongoRepository[T]) Save(ctx context.Context, entity T) error {
	id := entity.ID()
	if id == "" {
		return errEmptyID()
	}

	data, err := toDocument(entity)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	update := bson.M{
		"$set":         bson.M{"data": data, "updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	if _, err := m.collection.UpdateByID(ctx, id, update, options.Update().SetUpsert(true)); err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to save entity")
	}
	return nil
}

// FindByID находит entity по ID
func (m *MongoRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T

	var doc mongoDocument
	if err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, errNotFound(id)
		}
		return zero, core.Wrap(err, core.CodeStorage, "failed to find entity")
	}
	return fromDocument[T](doc.Data)
}

// FindAll возвращает все entities в порядке создания
func (m *MongoRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, core.Wrap(err, core.CodeStorage, "failed to query entities")
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []mongoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, core.Wrap(err, core.CodeStorage, "failed to decode entities")
	}

	entities := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := fromDocument[T](doc.Data)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// Delete удаляет entity
func (m *MongoRepository[T]) Delete(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to delete entity")
	}
	if result.DeletedCount == 0 {
		return errNotFound(id)
	}
	return nil
}

// toDocument переводит entity в BSON через ее JSON представление.
// Типы с собственным MarshalJSON (decimal, time) хранятся в том же виде, что и в PostgreSQL.
func toDocument(entity any) (bson.M, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert entity to bson: %w", err)
	}
	return doc, nil
}

func fromDocument[T any](raw bson.Raw) (T, error) {
	var entity T
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return entity, fmt.Errorf("failed to convert bson to json: %w", err)
	}
	if err := json.Unmarshal(data, &entity); err != nil {
		return entity, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return entity, nil
}
