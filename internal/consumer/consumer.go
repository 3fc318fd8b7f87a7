package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/axpect/staffhub/internal/services"
	logger "github.com/axpect/staffhub/middleware/log"
)

// FanoutConsumer 消费扇出事件并完成通知投递
type FanoutConsumer struct {
	notify *services.NotifyService
	log    *logger.Logger
}

func NewFanoutConsumer(notify *services.NotifyService, lg *logger.Logger) *FanoutConsumer {
	return &FanoutConsumer{
		notify: notify,
		log:    lg,
	}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (consumer *FanoutConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (consumer *FanoutConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (consumer *FanoutConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var ev services.FanoutEvent
		if err := json.Unmarshal(message.Value, &ev); err != nil {
			consumer.log.Warn("反序列化扇出事件失败，跳过",
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset),
				zap.Error(err))
			session.MarkMessage(message, "")
			continue
		}

		// 单个接收者的失败在 Deliver 内部隔离，事件本身标记为已消费
		consumer.notify.Deliver(&ev)
		session.MarkMessage(message, "")
	}
	return nil
}

// StartConsumer 启动消费者组循环；创建失败返回错误，由调用方决定是否降级
func StartConsumer(brokers []string, groupID string, topic string, consumer *FanoutConsumer) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	go func() {
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				consumer.log.Error("消费者组错误", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return client, nil
}
