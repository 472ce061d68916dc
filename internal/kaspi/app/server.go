package app

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"kaspimarket_api/config"
	"kaspimarket_api/internal/kaspi/app/web"
	handlers2 "kaspimarket_api/internal/kaspi/app/web/handlers"
	"kaspimarket_api/internal/kaspi/business/services"
	"kaspimarket_api/internal/kaspi/business/services/attributes"
	"kaspimarket_api/internal/kaspi/business/services/conveyor"
	"kaspimarket_api/internal/kaspi/business/services/mapping"
	"kaspimarket_api/internal/kaspi/business/services/parse"
	"kaspimarket_api/internal/kaspi/business/services/pricing"
	clients2 "kaspimarket_api/internal/kaspi/pkg/clients"
	"kaspimarket_api/internal/kaspi/storage"
	msclients "kaspimarket_api/internal/moysklad/pkg/clients"
	"kaspimarket_api/internal/notify"
	"kaspimarket_api/migrations/infrastructure"
	kaspimigrate "kaspimarket_api/migrations/marketplaces/kaspi"
	"kaspimarket_api/pkg/dbconnect"
	"kaspimarket_api/pkg/dbconnect/migration"
	"kaspimarket_api/pkg/locks"
	"kaspimarket_api/pkg/logger"
)

// ConveyorServer собирает конвейер из конфигурации и гоняет его по
// расписанию.
type ConveyorServer struct {
	dbconnect.Database
	config.AppConfig
	log    logger.Logger
	writer io.Writer
}

func NewConveyorServer(connector dbconnect.Database, cfg config.AppConfig, writer io.Writer) *ConveyorServer {
	_log := logger.NewLogger(writer, "[ConveyorServer]")
	return &ConveyorServer{Database: connector, AppConfig: cfg, log: _log, writer: writer}
}

// Run применяет миграции, строит зависимости и запускает прогоны. Без
// расписания в конфиге выполняется ровно один прогон.
func (s *ConveyorServer) Run(ctx context.Context) error {
	db, err := s.Connect()
	if err != nil {
		s.log.FatalLog("Error connecting to PostgreSQL: %s\n", err)
	}
	defer db.Close()

	migrationApply := []migration.MigrationInterface{
		&infrastructure.MigrationsRegistry{},
		&kaspimigrate.CreateKaspiSchema{},
		&kaspimigrate.CreateKaspiProductsTable{},
		&kaspimigrate.CreateKaspiUploadJobsTable{},
	}
	for _, _migration := range migrationApply {
		if err := _migration.UpMigration(db); err != nil {
			s.log.FatalLog("Migration failed: %v", err)
		}
	}
	s.log.Log("Kaspi migrations applied successfully!")

	productRepo := storage.NewProductRepository(db)
	jobRepo := storage.NewJobRepository(db)

	go web.SetupRoutes(":8081", handlers2.NewProductHandler(productRepo, jobRepo, s.writer))

	dispatcher, err := s.buildDispatcher(productRepo, jobRepo)
	if err != nil {
		return err
	}

	if s.Conveyor.Schedule == "" {
		return dispatcher.Run(ctx)
	}
	return s.runScheduled(ctx, dispatcher)
}

func (s *ConveyorServer) buildDispatcher(productRepo *storage.ProductRepository, jobRepo *storage.JobRepository) (*conveyor.Dispatcher, error) {
	var authEngine services.AuthEngine
	authEngine = services.NewTokenAuth(s.Kaspi.ApiKey)

	rpm := s.Conveyor.RequestsPerMin
	if rpm <= 0 {
		rpm = 60
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 5)

	kaspiClient := clients2.NewKaspiClient(s.Kaspi.BaseURL, authEngine, limiter, s.writer)
	msClient := msclients.NewMoySkladClient(s.MoySklad.BaseURL, s.MoySklad.Login, s.MoySklad.Password, s.writer)

	// Проверка токена и связи до первого прогона.
	checkCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if categories, err := kaspiClient.Categories(checkCtx); err != nil {
		s.log.Log("marketplace API check failed: %v", err)
	} else {
		s.log.Log("marketplace API reachable, %d categories in taxonomy", len(categories.Data))
	}

	cache := attributes.NewSchemaCache(kaspiClient)
	resolver := attributes.NewResolver(
		cache,
		parse.NewAttributeExtractor(parse.DefaultExtractRules()),
		attributes.DefaultCategoryDefaults(),
		s.writer,
	)

	policy, err := pricing.NewPricePolicy(s.Kaspi.KaspiValues.TargetDivisor, s.Kaspi.KaspiValues.MinDivisor)
	if err != nil {
		return nil, err
	}

	sink := notify.NewAsync(notify.NewTelegramSink(s.Telegram.BotToken, s.Telegram.ChatID, s.writer))

	conv := conveyor.NewConveyor(
		productRepo,
		jobRepo,
		msClient,
		kaspiClient,
		mapping.NewCategoryMapper(mapping.DefaultRules()),
		resolver,
		parse.NewBrandServiceKaspi(s.Kaspi.Banned.BannedBrands),
		policy,
		sink,
		s.Conveyor,
		s.Kaspi.KaspiValues,
		s.writer,
	)

	return conveyor.NewDispatcher(conv, productRepo, s.buildLocker(), cache, s.Conveyor, s.writer), nil
}

// buildLocker выбирает redis-лизинг при настроенном Redis, иначе процессный
// замок. Процессного хватает на один экземпляр; redis нужен, когда прогоны
// могут идти из нескольких реплик.
func (s *ConveyorServer) buildLocker() locks.Locker {
	if s.Redis.Addr == "" {
		return locks.NewMemoryLocker()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     s.Redis.Addr,
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
	})

	ttl := s.Conveyor.RunTimeout
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return locks.NewRedisLocker(rdb, "kaspimarket", uuid.NewString(), ttl)
}

// runScheduled гоняет прогоны по cron-выражению. Затянувшийся прогон не
// накладывается на следующий: опоздавший тик пропускается.
func (s *ConveyorServer) runScheduled(ctx context.Context, dispatcher *conveyor.Dispatcher) error {
	var running atomic.Bool

	c := cron.New()
	_, err := c.AddFunc(s.Conveyor.Schedule, func() {
		if !running.CompareAndSwap(false, true) {
			s.log.Log("previous run still in progress, skipping tick")
			return
		}
		defer running.Store(false)

		if err := dispatcher.Run(ctx); err != nil {
			s.log.Log("run finished with error: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.log.Log("conveyor scheduled: %q", s.Conveyor.Schedule)
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
