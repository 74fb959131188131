package process

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"ecosystem.dev/internal/log"
	"ecosystem.dev/internal/pubsub"
	"github.com/nxadm/tail"
)

type LogFileResult struct {
	Text    string `json:"text"`
	Counter int    `json:"counter"`
}

func (m *ProcessManager) getLogFilePath(id ProcessId) string {
	processLogsPath := filepath.Join(m.processLogsFolderPath, filepath.FromSlash(id.Category), id.Key+".log")
	return processLogsPath
}

func (r *RHandle) GetLogFile(id ProcessId) (LogFileResult, error) {
	proc, err := r.FindById(id)
	if err != nil {
		return LogFileResult{}, err
	}

	var info pubsub.TopicInfo
	r.m.m.Lock()
	if topic := r.m.topics[id]; topic != nil {
		info = r.m.registry.GetTopicInfo()[topic.Id.String()]
	}
	r.m.m.Unlock()

	f, err := os.ReadFile(proc.OutputPath)
	if os.IsNotExist(err) {
		return LogFileResult{Counter: info.Counter}, nil
	}
	if err != nil {
		return LogFileResult{}, err
	}

	res := LogFileResult{
		Text:    string(f),
		Counter: info.Counter,
	}

	return res, nil
}

func (id ProcessId) LogsTopicId() pubsub.TopicId {
	return pubsub.TopicId{
		Category: path.Join("/logs", id.Category),
		Key:      id.Key,
	}
}

// SubscribeLogs streams lines appended to the process output from now on. The
// subscription ends when the process exits.
func (manager *ProcessManager) SubscribeLogs(id ProcessId) (pubsub.Subscription[string], error) {
	proc, err := manager.FindById(id)
	if err != nil {
		return pubsub.Subscription[string]{}, err
	}

	registry := manager.registry

	manager.m.Lock()
	defer manager.m.Unlock()

	topic := manager.topics[id]
	if topic != nil && !topic.IsClosed() {
		return pubsub.Subscribe[string](registry, topic.Id, 256)
	}

	topic, err = pubsub.CreateTopic[string](registry, id.LogsTopicId())
	if err != nil {
		logger.Err(err, "error creating logging topic for process", log.Ctx{
			"id": id,
		})
		return pubsub.Subscription[string]{}, err
	}
	manager.topics[id] = topic

	sub, err := pubsub.Subscribe[string](registry, topic.Id, 256)
	if err != nil {
		topic.Close()
		return pubsub.Subscription[string]{}, err
	}

	go manager.pipeTailIntoTopic(topicTailInfo{
		processId: id,
		logPath:   proc.OutputPath,
		logsTopic: topic,
		Context:   proc.Context,
	})

	return sub, nil
}

type topicTailInfo struct {
	processId ProcessId
	logPath   string
	logsTopic *pubsub.Topic[string]
	Context   context.Context
}

func (m *ProcessManager) pipeTailIntoTopic(process topicTailInfo) {
	if process.logsTopic == nil || process.logsTopic.IsClosed() {
		return
	}

	defer process.logsTopic.Close()

	config := tail.Config{
		ReOpen:    true,
		Follow:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	}
	out, err := tail.TailFile(process.logPath, config)
	if err != nil {
		logger.Err(err, "failed to tail file", log.Ctx{
			"id":   process.processId,
			"path": process.logPath,
		})
		return
	}

	defer out.Cleanup()
	defer out.Stop()

	for {
		select {
		case <-process.Context.Done():
			return

		case line, ok := <-out.Lines:
			if !ok {
				return
			}

			if line.Err != nil {
				logger.Err(line.Err, "got error in tail line", log.Ctx{
					"id": process.processId,
				})
				continue
			}

			process.logsTopic.Publish(line.Text)
		}
	}
}
