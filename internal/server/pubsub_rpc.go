package server

import (
	"ecosystem.dev/internal/pubsub"
	"ecosystem.dev/internal/rpc"
)

func GetTopics(server *Server) *rpc.Method[struct{}, map[string]pubsub.TopicInfo] {
	return &rpc.Method[struct{}, map[string]pubsub.TopicInfo]{
		Name:             "GetTopics",
		SkipInputParsing: true,
		Run: func(_ rpc.Request[struct{}]) (map[string]pubsub.TopicInfo, *rpc.HttpError) {
			return server.Topics.GetTopicInfo(), nil
		},
	}
}
