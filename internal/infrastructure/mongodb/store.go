// Package mongodb хранит каталог, заказы и сотрудников в MongoDB.
//
// Транзакции требуют replica set. Конфликты записи между параллельными
// транзакциями драйвер помечает как TransientTransactionError, и
// Session.WithTransaction повторяет функцию целиком.
package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/domain"
)

// Имена коллекций
const (
	ItemsCollection     = "items"
	OrdersCollection    = "orders"
	CountersCollection  = "counters"
	EmployeesCollection = "employees"
)

// Store реализует application.Store
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect подключается к MongoDB и проверяет соединение
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, core.Wrap(err, core.CodeStorage, "failed to connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, core.Wrap(err, core.CodeStorage, "failed to ping mongodb")
	}
	return client, nil
}

// NewStore создает хранилище в базе database и готовит коллекции
func NewStore(ctx context.Context, client *mongo.Client, database string) (*Store, error) {
	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Database возвращает базу, в которой лежат коллекции хранилища
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Ping проверяет доступность сервера
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// ensureSchema создает коллекции заранее: внутри транзакции их создание
// поддерживается не всеми версиями сервера.
func (s *Store) ensureSchema(ctx context.Context) error {
	existing, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to list collections")
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}
	for _, name := range []string{ItemsCollection, OrdersCollection, CountersCollection, EmployeesCollection} {
		if have[name] {
			continue
		}
		if err := s.db.CreateCollection(ctx, name); err != nil {
			return core.Wrap(err, core.CodeStorage, "failed to create collection "+name)
		}
	}

	_, err = s.db.Collection(OrdersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}},
		Options: options.Index().SetName("idx_orders_status"),
	})
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to create orders index")
	}
	return nil
}

// View выполняет fn в сессии со snapshot чтением
func (s *Store) View(ctx context.Context, fn func(tx application.ReadTx) error) error {
	session, err := s.client.StartSession(options.Session().SetSnapshot(true))
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to start session")
	}
	defer session.EndSession(ctx)

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		return fn(&readTx{db: s.db, sc: sc})
	})
}

// Update выполняет fn в транзакции
func (s *Store) Update(ctx context.Context, fn func(tx application.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to start session")
	}
	defer session.EndSession(ctx)

	txOptions := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&writeTx{readTx: readTx{db: s.db, sc: sc}})
	}, txOptions)
	if err != nil && !errors.As(err, new(core.CodedError)) {
		return core.Wrap(err, core.CodeStorage, "transaction failed")
	}
	return err
}

type itemDocument struct {
	ID       int64                `bson:"_id"`
	Name     string               `bson:"name"`
	Category string               `bson:"category"`
	Price    primitive.Decimal128 `bson:"price"`
	Stock    int                  `bson:"stock"`
}

type lineDocument struct {
	ItemID    int64                `bson:"item_id"`
	Name      string               `bson:"name"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
}

type orderDocument struct {
	ID        int64                `bson:"_id"`
	Lines     []lineDocument       `bson:"lines"`
	Total     primitive.Decimal128 `bson:"total"`
	Status    string               `bson:"status"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	value, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, core.Wrap(err, core.CodeStorage, "failed to encode decimal")
	}
	return value, nil
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Decimal{}, core.Wrap(err, core.CodeStorage, "failed to decode decimal")
	}
	return value, nil
}

func newItemDocument(item domain.Item) (itemDocument, error) {
	price, err := toDecimal128(item.Price)
	if err != nil {
		return itemDocument{}, err
	}
	return itemDocument{ID: item.ID, Name: item.Name, Category: item.Category, Price: price, Stock: item.Stock}, nil
}

func (d itemDocument) item() (domain.Item, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return domain.Item{}, err
	}
	return domain.Item{ID: d.ID, Name: d.Name, Category: d.Category, Price: price, Stock: d.Stock}, nil
}

func newOrderDocument(order domain.Order) (orderDocument, error) {
	total, err := toDecimal128(order.Total)
	if err != nil {
		return orderDocument{}, err
	}
	doc := orderDocument{
		ID:        order.ID,
		Lines:     make([]lineDocument, 0, len(order.Lines)),
		Total:     total,
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	for _, line := range order.Lines {
		price, err := toDecimal128(line.UnitPrice)
		if err != nil {
			return orderDocument{}, err
		}
		doc.Lines = append(doc.Lines, lineDocument{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
	}
	return doc, nil
}

func (d orderDocument) order() (domain.Order, error) {
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return domain.Order{}, err
	}
	order := domain.Order{
		ID:        d.ID,
		Lines:     make([]domain.OrderLine, 0, len(d.Lines)),
		Total:     total,
		Status:    domain.Status(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for _, line := range d.Lines {
		price, err := fromDecimal128(line.UnitPrice)
		if err != nil {
			return domain.Order{}, err
		}
		order.Lines = append(order.Lines, domain.OrderLine{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
	}
	return order, nil
}

// readTx выполняет запросы в контексте сессии. Контекст вызывающего кода
// нужен только для проверки отмены: сессия уже несет его дедлайн.
type readTx struct {
	db *mongo.Database
	sc mongo.SessionContext
}

func (r *readTx) session(ctx context.Context) (mongo.SessionContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.sc, nil
}

func (r *readTx) Item(ctx context.Context, id int64) (domain.Item, error) {
	sc, err := r.session(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	var doc itemDocument
	err = r.db.Collection(ItemsCollection).FindOne(sc, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Item{}, domain.ErrItemNotFound(id)
	}
	if err != nil {
		return domain.Item{}, core.Wrap(err, core.CodeStorage, "failed to load item")
	}
	return doc.item()
}

func (r *readTx) Items(ctx context.Context, yield func(domain.Item) bool) error {
	sc, err := r.session(ctx)
	if err != nil {
		return err
	}
	cursor, err := r.db.Collection(ItemsCollection).Find(sc, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to query items")
	}
	defer cursor.Close(sc)

	for cursor.Next(sc) {
		var doc itemDocument
		if err := cursor.Decode(&doc); err != nil {
			return core.Wrap(err, core.CodeStorage, "failed to decode item")
		}
		item, err := doc.item()
		if err != nil {
			return err
		}
		if !yield(item) {
			return nil
		}
	}
	if err := cursor.Err(); err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to read items")
	}
	return nil
}

func (r *readTx) Order(ctx context.Context, id int64) (domain.Order, error) {
	sc, err := r.session(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	var doc orderDocument
	err = r.db.Collection(OrdersCollection).FindOne(sc, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, domain.ErrOrderNotFound(id)
	}
	if err != nil {
		return domain.Order{}, core.Wrap(err, core.CodeStorage, "failed to load order")
	}
	return doc.order()
}

func (r *readTx) Orders(ctx context.Context, yield func(domain.Order) bool) error {
	sc, err := r.session(ctx)
	if err != nil {
		return err
	}
	cursor, err := r.db.Collection(OrdersCollection).Find(sc, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to query orders")
	}
	defer cursor.Close(sc)

	for cursor.Next(sc) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return core.Wrap(err, core.CodeStorage, "failed to decode order")
		}
		order, err := doc.order()
		if err != nil {
			return err
		}
		if !yield(order) {
			return nil
		}
	}
	if err := cursor.Err(); err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to read orders")
	}
	return nil
}

type writeTx struct {
	readTx
}

// nextID увеличивает счетчик в той же транзакции: при откате номер не расходуется
func (w *writeTx) nextID(ctx context.Context, name string) (int64, error) {
	sc, err := w.session(ctx)
	if err != nil {
		return 0, err
	}
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err = w.db.Collection(CountersCollection).FindOneAndUpdate(sc,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, core.Wrap(err, core.CodeStorage, "failed to allocate id")
	}
	return counter.Seq, nil
}

func (w *writeTx) InsertItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	id, err := w.nextID(ctx, ItemsCollection)
	if err != nil {
		return domain.Item{}, err
	}
	item.ID = id

	doc, err := newItemDocument(item)
	if err != nil {
		return domain.Item{}, err
	}
	sc, err := w.session(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	if _, err := w.db.Collection(ItemsCollection).InsertOne(sc, doc); err != nil {
		return domain.Item{}, core.Wrap(err, core.CodeStorage, "failed to insert item")
	}
	return item, nil
}

func (w *writeTx) UpdateItem(ctx context.Context, item domain.Item) error {
	sc, err := w.session(ctx)
	if err != nil {
		return err
	}
	doc, err := newItemDocument(item)
	if err != nil {
		return err
	}
	result, err := w.db.Collection(ItemsCollection).ReplaceOne(sc, bson.M{"_id": item.ID}, doc)
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to update item")
	}
	if result.MatchedCount == 0 {
		return domain.ErrItemNotFound(item.ID)
	}
	return nil
}

func (w *writeTx) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	id, err := w.nextID(ctx, OrdersCollection)
	if err != nil {
		return domain.Order{}, err
	}
	order = order.Clone()
	order.ID = id

	doc, err := newOrderDocument(order)
	if err != nil {
		return domain.Order{}, err
	}
	sc, err := w.session(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := w.db.Collection(OrdersCollection).InsertOne(sc, doc); err != nil {
		return domain.Order{}, core.Wrap(err, core.CodeStorage, "failed to insert order")
	}
	return order, nil
}

func (w *writeTx) UpdateOrder(ctx context.Context, order domain.Order) error {
	sc, err := w.session(ctx)
	if err != nil {
		return err
	}
	result, err := w.db.Collection(OrdersCollection).UpdateByID(sc, order.ID, bson.M{
		"$set": bson.M{"status": string(order.Status), "updated_at": order.UpdatedAt},
	})
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to update order")
	}
	if result.MatchedCount == 0 {
		return domain.ErrOrderNotFound(order.ID)
	}
	return nil
}

var _ application.Store = (*Store)(nil)
