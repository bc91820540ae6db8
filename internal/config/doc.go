// Package config 负责在进程启动时加载 JSON 主配置与账户凭据清单。
// 所有配置一次性读入内存，运行期间不再访问配置文件。
package config
