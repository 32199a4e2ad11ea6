// Package journal persists terminal order outcomes, fills and
// timed-out cancels, as parquet objects in S3. Records are buffered in
// memory per exchange and flushed on an interval or when a buffer
// reaches the configured batch size.
package journal

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "tradekit/config"
	"tradekit/logger"
	"tradekit/models"
)

// FillRecord is the parquet row layout for one terminal order.
type FillRecord struct {
	Exchange      string  `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol        string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrderID       string  `parquet:"name=order_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ClientOrderID string  `parquet:"name=client_order_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side          string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status        string  `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price         float64 `parquet:"name=price, type=DOUBLE"`
	Quantity      float64 `parquet:"name=quantity, type=DOUBLE"`
	Timestamp     int64   `parquet:"name=timestamp, type=INT64"`
}

// objectStore is the slice of the S3 client the journal uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Journal implements the fill recorder over S3. The zero value is not
// usable; construct with New.
type Journal struct {
	cfg      appconfig.JournalConfig
	store    objectStore
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	buffer   map[string][]models.Order
	ticker   *time.Ticker
	flushReq chan string
	log      *logger.Log
}

// New builds a journal from the configuration, validating the AWS
// credentials up front.
func New(cfg appconfig.JournalConfig) (*Journal, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	j := &Journal{
		cfg:      cfg,
		store:    s3.NewFromConfig(awsCfg),
		buffer:   make(map[string][]models.Order),
		flushReq: make(chan string, 16),
		log:      log,
	}

	log.WithComponent("journal").WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
		"prefix": cfg.Prefix,
	}).Info("fill journal initialized")

	return j, nil
}

// Start launches the flush worker. Returns an error when already running.
func (j *Journal) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return fmt.Errorf("journal already running")
	}
	j.running = true
	// Derived so Stop can end the worker even when the caller never
	// cancels its own context.
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.mu.Unlock()

	j.ticker = time.NewTicker(j.cfg.FlushInterval)
	j.wg.Add(1)
	go j.flushWorker()

	j.log.WithComponent("journal").Info("fill journal started")
	return nil
}

// Stop drains the remaining buffers and waits for the worker. Calling
// Stop on a journal that is not running is a no-op.
func (j *Journal) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	cancel := j.cancel
	j.mu.Unlock()

	cancel()
	j.wg.Wait()
	if j.ticker != nil {
		j.ticker.Stop()
	}
	j.log.WithComponent("journal").Info("fill journal stopped")
}

// RecordFill buffers one filled order. A buffer that reaches the batch
// size is scheduled for flushing out of band so the trading path never
// blocks on S3.
func (j *Journal) RecordFill(exchange string, order models.Order) {
	j.mu.Lock()
	j.buffer[exchange] = append(j.buffer[exchange], order)
	full := j.cfg.BatchSize > 0 && len(j.buffer[exchange]) >= j.cfg.BatchSize
	j.mu.Unlock()

	logger.IncrementFill(exchange)
	if full {
		select {
		case j.flushReq <- exchange:
		default:
		}
	}
}

func (j *Journal) flushWorker() {
	defer j.wg.Done()

	log := j.log.WithComponent("journal").WithFields(logger.Fields{"worker": "flush"})
	log.Info("starting flush worker")

	for {
		select {
		case <-j.ctx.Done():
			j.flushAll("shutdown")
			log.Info("flush worker stopped due to context cancellation")
			return
		case <-j.ticker.C:
			j.flushAll("interval")
		case exchange := <-j.flushReq:
			j.flushExchange(exchange, "batch_size")
		}
	}
}

func (j *Journal) flushAll(reason string) {
	j.mu.Lock()
	buffers := j.buffer
	j.buffer = make(map[string][]models.Order)
	j.mu.Unlock()

	for exchange, fills := range buffers {
		j.upload(exchange, fills, reason)
	}
}

func (j *Journal) flushExchange(exchange, reason string) {
	j.mu.Lock()
	fills := j.buffer[exchange]
	delete(j.buffer, exchange)
	j.mu.Unlock()

	j.upload(exchange, fills, reason)
}

func (j *Journal) upload(exchange string, fills []models.Order, reason string) {
	if len(fills) == 0 {
		return
	}

	log := j.log.WithComponent("journal").WithFields(logger.Fields{
		"exchange":     exchange,
		"record_count": len(fills),
		"reason":       reason,
	})

	data, err := encodeFills(exchange, fills)
	if err != nil {
		log.WithError(err).Error("failed to encode fill batch")
		return
	}

	key := j.objectKey(exchange, time.Now().UTC())
	input := &s3.PutObjectInput{
		Bucket:      aws.String(j.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type": "parquet",
			"exchange":     exchange,
		},
	}

	ctx := context.WithoutCancel(j.ctx)
	if _, err := j.store.PutObject(ctx, input); err != nil {
		log.WithError(err).WithFields(logger.Fields{"bucket": j.cfg.Bucket, "key": key}).Error("failed to upload fill batch")
		return
	}

	log.WithFields(logger.Fields{"key": key, "file_size": len(data)}).Info("fill batch uploaded")
}

// objectKey partitions fills by exchange and date under the configured
// prefix.
func (j *Journal) objectKey(exchange string, now time.Time) string {
	filename := fmt.Sprintf("%s_fills_%s_%s.parquet", exchange, now.Format("20060102150405"), uuid.NewString())
	key := filepath.Join(
		j.cfg.Prefix,
		fmt.Sprintf("exchange=%s", exchange),
		fmt.Sprintf("date=%s", now.Format("2006-01-02")),
		filename,
	)
	return filepath.ToSlash(key)
}
