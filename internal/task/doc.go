// Package task 实现每日任务的编排与周期调度。
//
// Orchestrator 负责单账户的一次完整工作流（状态查询、内容生成、
// 对象创建、链上登记），Scheduler 负责把所有账户按固定顺序串成
// 无限的周期循环。两者都严格串行执行，失败被隔离在账户边界内。
package task
