package main

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"songgraph/internal/orchestrator"
	"songgraph/internal/progress"
	"songgraph/internal/service"
	"songgraph/internal/storage"
	"songgraph/pkg/graceful"
	"songgraph/pkg/kafkaclient"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run submissions read from Kafka and publish their progress",
	Long: "consume reads enrichment requests from the submit topic, either inline\n" +
		"JSON or MinIO bucket notifications pointing at a stored request, runs\n" +
		"each one as a job and publishes its progress events to the progress topic.",
	RunE: runConsume,
}

func runConsume(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	k := a.cfg.Kafka
	if err := requireSet(map[string]string{
		"KAFKA_BROKER":         k.Broker,
		"KAFKA_SUBMIT_TOPIC":   k.SubmitTopic,
		"KAFKA_PROGRESS_TOPIC": k.ProgressTopic,
		"KAFKA_GROUP_ID":       k.GroupID,
	}); err != nil {
		return err
	}

	ctx, cancel := graceful.Context(cmd.Context(), a.logger)
	defer cancel()

	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	loader, err := a.requestLoader()
	if err != nil {
		return err
	}

	registry := a.registry()
	go registry.RunSweeper(ctx, a.sweepInterval())
	o := a.orchestrator(ctx, registry, store)
	publisher := progress.NewPublisher(registry, time.Duration(a.cfg.Progress.PollInterval), a.logger.Named("progress"))

	producer := kafkaclient.NewKafkaProducer(k.ProgressTopic, k.Broker)
	defer producer.Close()
	sink := progress.NewKafkaSink(producer, a.logger.Named("sink"))

	a.logger.Info("connecting to kafka",
		zap.String("broker", k.Broker),
		zap.String("topic", k.SubmitTopic),
		zap.String("group_id", k.GroupID))
	consumer := kafkaclient.NewKafkaConsumer(k.SubmitTopic, k.GroupID, k.Broker, a.logger.Named("kafka"))
	consumer.StartConsuming(ctx)
	defer consumer.Stop()

	iterator := service.NewIterator(consumer, service.AutoDecoder(loader), a.logger.Named("iterator"))

	var forwarders sync.WaitGroup
	for obj := range iterator.Objects(ctx) {
		id, err := o.Submit(obj.Data)
		if err != nil {
			a.logger.Warn("rejected submission", zap.Int64("offset", obj.Message.Offset), zap.Error(err))
			continue
		}
		a.logger.Info("accepted submission", zap.String("job_id", id), zap.Int64("offset", obj.Message.Offset))

		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			if err := sink.Forward(ctx, id, publisher.Stream(ctx, id)); err != nil {
				a.logger.Warn("progress forwarding failed", zap.String("job_id", id), zap.Error(err))
			}
		}()
	}

	consumer.Stop()
	o.Wait()
	forwarders.Wait()
	a.logger.Info("consumer finished")
	return nil
}

// requestLoader reads requests referenced by bucket notifications. Without a
// MinIO endpoint only inline requests are accepted.
func (a *app) requestLoader() (service.LoaderFunc[orchestrator.Request], error) {
	if a.cfg.Storage.MinIO.Endpoint == "" {
		return nil, nil
	}
	cfg := a.s3Config()
	if cfg.Bucket == "" {
		cfg.Bucket = "submissions"
	}
	s3, err := storage.NewS3Store(cfg, a.logger.Named("submissions"))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, bucket, key string) (orchestrator.Request, error) {
		var req orchestrator.Request
		err := s3.GetJSON(ctx, bucket, key, &req)
		return req, err
	}, nil
}
