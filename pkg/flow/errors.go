package flow

import "errors"

// =============================================================================
// 解码错误
// =============================================================================
//
// 快照来自链上资源，解码失败一律直接返回给调用方，不做重试。
// 调用方用 errors.Is 判断类型，具体上下文由 fmt.Errorf("%w: ...") 附带。

var (
	// ErrMalformedLink 链接字段不是哨兵值，也不是合法的非负整数
	ErrMalformedLink = errors.New("malformed link")

	// ErrMalformedTree 树的链接越界，或 root/min/max 的有无不一致
	ErrMalformedTree = errors.New("malformed tree")

	// ErrMalformedQueue 队列 head 缺失或链接越界
	ErrMalformedQueue = errors.New("malformed queue")

	// ErrEmptyQueueValue 存活节点的 Option 容器为空
	ErrEmptyQueueValue = errors.New("queue node value is empty")

	// ErrQueueCycleDetected 队列链接成环
	ErrQueueCycleDetected = errors.New("queue cycle detected")

	// ErrIteratorExhausted 迭代器已经结束
	ErrIteratorExhausted = errors.New("iterator exhausted")
)
