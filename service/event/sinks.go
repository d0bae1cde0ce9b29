/*
 * @module service/event/sinks
 * @description 变更事件外部输出，支持Kafka主题和MQTT主题
 * @architecture 事件驱动架构 - 消息输出适配
 * @documentReference dev_docs/change_events.md
 * @stateFlow 变更事件 -> JSON序列化 -> Kafka Writer / MQTT Publish
 * @rules Kafka消息以表名:记录ID为键，保证同一记录的事件有序；MQTT主题为 <topic>/<table>
 * @dependencies github.com/segmentio/kafka-go, github.com/eclipse/paho.mqtt.golang
 * @refs service/event/event_service.go, service/init.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pvsdm-service/service/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"
)

// messageWriter Kafka写入接口，便于替换
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink Kafka输出
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaSink 创建Kafka输出
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &KafkaSink{writer: writer, topic: topic}
}

// Name 输出名称
func (k *KafkaSink) Name() string {
	return "kafka:" + k.topic
}

// Send 发送变更事件
func (k *KafkaSink) Send(ctx context.Context, event models.ChangeEvent) error {
	msg, err := kafkaMessage(event)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发送Kafka消息失败: %w", err)
	}
	return nil
}

// Close 关闭生产者
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func kafkaMessage(event models.ChangeEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("序列化变更事件失败: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Table + ":" + event.RecordID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "table", Value: []byte(event.Table)},
			{Key: "type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}, nil
}

// MQTTSink MQTT输出
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// MQTTOptions MQTT连接参数
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// NewMQTTSink 创建并连接MQTT输出
func NewMQTTSink(o MQTTOptions) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetCleanSession(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT连接断开", "broker", o.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT连接失败: %w", token.Error())
	}
	return &MQTTSink{client: client, topic: o.Topic, qos: 1}, nil
}

// Name 输出名称
func (m *MQTTSink) Name() string {
	return "mqtt:" + m.topic
}

// Send 发布变更事件
func (m *MQTTSink) Send(ctx context.Context, event models.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化变更事件失败: %w", err)
	}

	token := m.client.Publish(MQTTTopic(m.topic, event.Table), m.qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("发布MQTT消息失败: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 断开连接
func (m *MQTTSink) Close() error {
	m.client.Disconnect(250) // 等待250ms让消息发送完成
	return nil
}

// MQTTTopic 按表名划分的主题
func MQTTTopic(base, table string) string {
	return base + "/" + table
}
