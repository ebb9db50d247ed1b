package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"campusmart/pkg/domain"
)

const migrateLockID int64 = 51872043

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to Postgres without touching the schema.
func OpenGorm(dsn string) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

// Migrate creates or updates all tables under a Postgres advisory lock so that
// several replicas starting together do not race.
func Migrate(db *gorm.DB) error {
	return withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ProductModel{},
			&CartItemModel{},
			&OrderModel{},
			&MessageModel{},
			&SupportTicketModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'cart_item_models'
					AND constraint_name = 'cart_item_models_quantity_positive'
				) THEN
					DELETE FROM cart_item_models WHERE quantity <= 0;
					ALTER TABLE cart_item_models
					ADD CONSTRAINT cart_item_models_quantity_positive CHECK (quantity > 0);
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure cart quantity check: %w", err)
		}
		return nil
	})
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := OpenGorm(dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "contact_number", "role", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateProduct inserts a listing; a title collision maps to ErrDuplicateTitle.
func (s *GormStore) CreateProduct(p domain.Product) error {
	model := productToModel(p)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateTitle
		}
		return err
	}
	return nil
}

// GetProduct returns a product by ID.
func (s *GormStore) GetProduct(id string) (domain.Product, bool, error) {
	var model ProductModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, err
	}
	return productFromModel(model), true, nil
}

// GetProductByTitle returns the product holding an exact title.
func (s *GormStore) GetProductByTitle(title string) (domain.Product, bool, error) {
	var model ProductModel
	if err := s.db.Where("title = ?", title).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, err
	}
	return productFromModel(model), true, nil
}

// GetProductsByIDs resolves a batch of references; missing IDs are absent from the map.
func (s *GormStore) GetProductsByIDs(ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []ProductModel
	if err := s.db.Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		out[m.ID] = productFromModel(m)
	}
	return out, nil
}

// ListProducts returns the catalog ordered by creation time.
func (s *GormStore) ListProducts(filter ProductFilter) ([]domain.Product, error) {
	tx := s.db.Order("created_at ASC")
	if filter.Category != "" {
		tx = tx.Where("category = ?", filter.Category)
	}
	if filter.SubCategory != "" {
		tx = tx.Where("sub_category = ?", filter.SubCategory)
	}
	if filter.SellerEmail != "" {
		tx = tx.Where("seller_email = ?", filter.SellerEmail)
	}
	var models []ProductModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Product, 0, len(models))
	for _, m := range models {
		res = append(res, productFromModel(m))
	}
	return res, nil
}

// DeleteProduct removes a listing. Cart lines and order items that reference
// it are left in place and resolve to nil on read.
func (s *GormStore) DeleteProduct(id string) (bool, error) {
	res := s.db.Delete(&ProductModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddCartQuantity applies delta with a single upsert or conditional update.
func (s *GormStore) AddCartQuantity(userID, productID string, delta int) (int, bool, error) {
	var (
		quantity int
		ok       bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if delta > 0 {
			model := CartItemModel{
				UserID:    userID,
				ProductID: productID,
				Quantity:  delta,
				AddedAt:   time.Now().UTC(),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"quantity": gorm.Expr("cart_item_models.quantity + EXCLUDED.quantity"),
				}),
			}).Create(&model).Error; err != nil {
				return err
			}
		} else {
			var current CartItemModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ? AND product_id = ?", userID, productID).
				First(&current).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if current.Quantity+delta <= 0 {
				ok = true
				return tx.Delete(&CartItemModel{}, "user_id = ? AND product_id = ?", userID, productID).Error
			}
			if err := tx.Model(&CartItemModel{}).
				Where("user_id = ? AND product_id = ?", userID, productID).
				Update("quantity", gorm.Expr("quantity + ?", delta)).Error; err != nil {
				return err
			}
		}
		var after CartItemModel
		if err := tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&after).Error; err != nil {
			return err
		}
		quantity, ok = after.Quantity, true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return quantity, ok, nil
}

// SetCartQuantity overwrites an existing line; a non-positive quantity removes it.
func (s *GormStore) SetCartQuantity(userID, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveCartItem(userID, productID)
	}
	return s.db.Model(&CartItemModel{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity).Error
}

// RemoveCartItem deletes one line; absent lines are ignored.
func (s *GormStore) RemoveCartItem(userID, productID string) error {
	return s.db.Delete(&CartItemModel{}, "user_id = ? AND product_id = ?", userID, productID).Error
}

// ListCart returns a user's lines in the order they were first added.
func (s *GormStore) ListCart(userID string) ([]domain.CartItem, error) {
	var models []CartItemModel
	if err := s.db.Where("user_id = ?", userID).Order("added_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.CartItem, 0, len(models))
	for _, m := range models {
		items = append(items, domain.CartItem{
			UserID:    m.UserID,
			ProductID: m.ProductID,
			Quantity:  m.Quantity,
			AddedAt:   m.AddedAt,
		})
	}
	return items, nil
}

// ClearCart empties a user's cart.
func (s *GormStore) ClearCart(userID string) error {
	return s.db.Delete(&CartItemModel{}, "user_id = ?", userID).Error
}

// CreateOrders commits the batch and the cart clear together.
func (s *GormStore) CreateOrders(orders []domain.Order, clearCartUserID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if len(orders) > 0 {
			models := make([]OrderModel, 0, len(orders))
			for _, o := range orders {
				m, err := orderToModel(o)
				if err != nil {
					return err
				}
				models = append(models, m)
			}
			if err := tx.Create(&models).Error; err != nil {
				return fmt.Errorf("insert orders: %w", err)
			}
		}
		if clearCartUserID != "" {
			if err := tx.Delete(&CartItemModel{}, "user_id = ?", clearCartUserID).Error; err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}
		return nil
	})
}

// GetOrder returns an order by ID.
func (s *GormStore) GetOrder(id string) (domain.Order, bool, error) {
	var model OrderModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, err
	}
	o, err := orderFromModel(model)
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}

// SetPendingOrderOTP overwrites the stored hash of a Pending order.
func (s *GormStore) SetPendingOrderOTP(id, otpHash string) (bool, error) {
	res := s.db.Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(domain.OrderPending)).
		Update("otp_hash", otpHash)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CompleteOrder performs the single Pending -> Completed transition. The hash
// guard makes a concurrent SetPendingOrderOTP win over a stale code.
func (s *GormStore) CompleteOrder(id, otpHash string, at time.Time) (bool, error) {
	res := s.db.Model(&OrderModel{}).
		Where("id = ? AND status = ? AND otp_hash = ?", id, string(domain.OrderPending), otpHash).
		Updates(map[string]any{
			"status":       string(domain.OrderCompleted),
			"completed_at": at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListOrders returns matching orders, newest first.
func (s *GormStore) ListOrders(filter OrderFilter) ([]domain.Order, error) {
	tx := s.db.Order("created_at DESC")
	if filter.SellerEmail != "" {
		tx = tx.Where("seller_email = ?", filter.SellerEmail)
	}
	if filter.BuyerEmail != "" {
		tx = tx.Where("buyer_email = ?", filter.BuyerEmail)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var models []OrderModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Order, 0, len(models))
	for _, m := range models {
		o, err := orderFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, nil
}

// AppendMessage records a message.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := MessageModel{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Receiver:  msg.Receiver,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	return s.db.Create(&model).Error
}

// ListConversation returns messages between two users in either direction, oldest first.
func (s *GormStore) ListConversation(userA, userB string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.
		Where("(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)", userA, userB, userB, userA).
		Order("timestamp ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, messageFromModel(m))
	}
	return msgs, nil
}

// ListChatPartners returns the distinct counterparts of a user, sorted.
func (s *GormStore) ListChatPartners(email string) ([]string, error) {
	rows, err := s.db.Raw(`
		SELECT DISTINCT CASE WHEN sender = ? THEN receiver ELSE sender END AS partner
		FROM message_models
		WHERE sender = ? OR receiver = ?
		ORDER BY partner ASC
	`, email, email, email).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	partners := []string{}
	for rows.Next() {
		var partner string
		if err := rows.Scan(&partner); err != nil {
			return nil, err
		}
		if partner != email {
			partners = append(partners, partner)
		}
	}
	return partners, rows.Err()
}

// SaveSupportTicket stores a ticket.
func (s *GormStore) SaveSupportTicket(t domain.SupportTicket) error {
	model := SupportTicketModel{
		ID:        t.ID,
		Email:     t.Email,
		Message:   t.Message,
		CreatedAt: t.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// GetSupportTicket returns a ticket by ID.
func (s *GormStore) GetSupportTicket(id string) (domain.SupportTicket, bool, error) {
	var model SupportTicketModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SupportTicket{}, false, nil
		}
		return domain.SupportTicket{}, false, err
	}
	return domain.SupportTicket{
		ID:        model.ID,
		Email:     model.Email,
		Message:   model.Message,
		CreatedAt: model.CreatedAt,
	}, true, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ContactNumber: u.ContactNumber,
		Role:          string(u.Role),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role := domain.UserRole(m.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		ID:            m.ID,
		Email:         m.Email,
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		ContactNumber: m.ContactNumber,
		Role:          role,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func productToModel(p domain.Product) ProductModel {
	return ProductModel{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		SubCategory: p.SubCategory,
		SellerEmail: p.SellerEmail,
		BuyerEmail:  p.BuyerEmail,
		CreatedAt:   p.CreatedAt,
	}
}

func productFromModel(m ProductModel) domain.Product {
	return domain.Product{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Price:       m.Price,
		ImageURL:    m.ImageURL,
		Category:    m.Category,
		SubCategory: m.SubCategory,
		SellerEmail: m.SellerEmail,
		BuyerEmail:  m.BuyerEmail,
		CreatedAt:   m.CreatedAt,
	}
}

func orderToModel(o domain.Order) (OrderModel, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return OrderModel{}, fmt.Errorf("marshal order items: %w", err)
	}
	return OrderModel{
		ID:          o.ID,
		BuyerEmail:  o.BuyerEmail,
		SellerEmail: o.SellerEmail,
		Status:      string(o.Status),
		Items:       items,
		OTPHash:     o.OTPHash,
		CreatedAt:   o.CreatedAt,
		CompletedAt: o.CompletedAt,
	}, nil
}

func orderFromModel(m OrderModel) (domain.Order, error) {
	var items []domain.LineItem
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &items); err != nil {
			return domain.Order{}, fmt.Errorf("decode order %s items: %w", m.ID, err)
		}
	}
	return domain.Order{
		ID:          m.ID,
		BuyerEmail:  m.BuyerEmail,
		SellerEmail: m.SellerEmail,
		Items:       items,
		Status:      domain.OrderStatus(m.Status),
		OTPHash:     m.OTPHash,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}, nil
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:        m.ID,
		Sender:    m.Sender,
		Receiver:  m.Receiver,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}
