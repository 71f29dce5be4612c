package model

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter считает количество токенов модели в тексте
type TokenCounter interface {
	Count(text string) (int, error)
}

// tiktokenCounter загружает кодировку при первом вызове, BPE таблицы
// скачиваются один раз на процесс
type tiktokenCounter struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTokenCounter(model string) TokenCounter {
	return &tiktokenCounter{model: model}
}

func (c *tiktokenCounter) Count(text string) (int, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.EncodingForModel(c.model)
		if c.err != nil {
			// для неизвестных моделей берем кодировку текущего семейства эмбеддингов
			c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
		}
	})
	if c.err != nil {
		return 0, c.err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}
