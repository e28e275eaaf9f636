package redis

const (
	// upsertRoundScript atomically writes a round and its index entry
	upsertRoundScript = `
local round_key = KEYS[1]       -- engage:round:{id}
local index_key = KEYS[2]       -- engage:rounds

local id = ARGV[1]
local status = ARGV[7]
local score = tonumber(ARGV[13])
local ttl_seconds = tonumber(ARGV[14])

-- Keep the first start time when the round already exists
local started_at = ARGV[11]
local existing_started = redis.call('HGET', round_key, 'started_at')
if existing_started then
  started_at = existing_started
end

redis.call('HSET', round_key,
  'id', id,
  'session_id', ARGV[2],
  'service_session_id', ARGV[3],
  'video_name', ARGV[4],
  'video_type', ARGV[5],
  'video_size', ARGV[6],
  'status', status,
  'error_kind', ARGV[8],
  'error_message', ARGV[9],
  'summary', ARGV[10],
  'started_at', started_at,
  'updated_at', ARGV[12]
)

if not existing_started then
  redis.call('ZADD', index_key, score, id)
end

-- Finished rounds expire; rounds still processing are kept
if status ~= 'processing' and ttl_seconds > 0 then
  redis.call('EXPIRE', round_key, ttl_seconds)
else
  redis.call('PERSIST', round_key)
end

return 'OK'
`
)
