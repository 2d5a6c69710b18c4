package mq

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"im_storage/internal/config"
	"im_storage/pkg/errorx"
)

const (
	defaultTimeout  = 5 * time.Second
	retryBackoffMin = 200 * time.Millisecond
	retryBackoffMax = 10 * time.Second
)

// KafkaService 扇出主题的生产者与消费者
type KafkaService struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	brokers []string
	topic   string
}

var _ TaskPublisher = (*KafkaService)(nil)

// NewKafkaService 根据配置创建写入端与消费组读取端
// 写入端要求所有副本确认，扇出任务不能丢
func NewKafkaService(cfg config.KafkaConfig) *KafkaService {
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout * time.Second
	}
	brokers := []string{cfg.HostPort}
	return &KafkaService{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  cfg.FanoutTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           timeout,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: false,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       cfg.FanoutTopic,
			GroupID:     cfg.GroupID,
			StartOffset: kafka.FirstOffset,
			MaxWait:     timeout,
		}),
		brokers: brokers,
		topic:   cfg.FanoutTopic,
	}
}

// CreateTopic 主题已存在时不报错
func (k *KafkaService) CreateTopic(partitions int) error {
	conn, err := kafka.Dial("tcp", k.brokers[0])
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeMQError, "连接 Kafka %s", k.brokers[0])
	}
	defer conn.Close()

	// 建主题必须发给 controller
	controller, err := conn.Controller()
	if err != nil {
		return errorx.Wrap(err, errorx.CodeMQError, "获取 Kafka controller")
	}
	ctrlConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return errorx.Wrap(err, errorx.CodeMQError, "连接 Kafka controller")
	}
	defer ctrlConn.Close()

	if partitions <= 0 {
		partitions = 1
	}
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             k.topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return errorx.Wrapf(err, errorx.CodeMQError, "创建主题 %s", k.topic)
	}
	return nil
}

// Publish 批量写入扇出任务
func (k *KafkaService) Publish(ctx context.Context, tasks ...FanoutTask) error {
	if len(tasks) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(tasks))
	for _, t := range tasks {
		value, err := t.Encode()
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: t.Key(), Value: value})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return errorx.Wrapf(err, errorx.CodeMQError, "写入 %d 条扇出任务", len(msgs))
	}
	return nil
}

// Consume 阻塞消费直到 ctx 取消
// 处理成功才提交位点；处理失败按指数退避重试同一条消息，保证至少一次
// 无法解码的消息记录后直接跳过
func (k *KafkaService) Consume(ctx context.Context, handle TaskHandler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return errorx.Wrap(err, errorx.CodeMQError, "拉取扇出任务")
		}

		task, err := DecodeFanoutTask(msg.Value)
		if err != nil {
			zap.L().Error("drop malformed fanout task",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		} else if err := handleWithRetry(ctx, handle, task); err != nil {
			// 只有 ctx 取消才会走到这里，位点不提交，重启后重投
			return nil
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errorx.Wrap(err, errorx.CodeMQError, "提交扇出位点")
		}
	}
}

func handleWithRetry(ctx context.Context, handle TaskHandler, task FanoutTask) error {
	backoff := retryBackoffMin
	for {
		err := handle(ctx, task)
		if err == nil {
			return nil
		}
		zap.L().Warn("fanout task failed, retrying",
			zap.Int64("group", task.GroupID), zap.Int64("user", task.UserID),
			zap.Stringer("version", task.Version), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, retryBackoffMax)
	}
}

func (k *KafkaService) Close() error {
	werr := k.writer.Close()
	rerr := k.reader.Close()
	if err := errors.Join(werr, rerr); err != nil {
		return errorx.Wrap(err, errorx.CodeMQError, "关闭 Kafka 客户端")
	}
	return nil
}
