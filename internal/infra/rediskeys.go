package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "logitower"
)

// Ключи кэша (последнее каноничное состояние)
const (
	// RedisKeyOverview — последний смерженный снапшот дашборда (JSON).
	// Пишется консолью после каждого успешного мержа, читается соседними
	// инструментами, которым не нужно повторять логику reconciliation.
	RedisKeyOverview   = RedisNamespace + ":state:overview"
	RedisKeyConnection = RedisNamespace + ":state:connected"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanFrames — ретрансляция принятых push-кадров как есть.
	RedisChanFrames = RedisNamespace + ":realtime:frames"
	// RedisChanEvents — только кадры agent_event, для подписчиков-аналитиков.
	RedisChanEvents = RedisNamespace + ":realtime:agent-events"
)
