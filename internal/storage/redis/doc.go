// Package redis 提供基于 Redis 的会话令牌缓存。除会话令牌外，
// 进程不持久化任何运行状态。
package redis
