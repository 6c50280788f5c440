package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Transaction describes one commit.
type Transaction struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>"
	Message string
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

func commitTransaction(c *object.Commit) Transaction {
	author := ""
	if c.Author.Name != "" || c.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email)
	}
	return Transaction{
		Id:      c.Hash.String(),
		When:    c.Committer.When,
		Author:  author,
		Message: c.Message,
	}
}

// LatestTransaction returns HEAD, or a zero Transaction before the first commit.
func (persistence *Persistence) LatestTransaction() Transaction {
	headRef, err := persistence.repo.Head()
	if err != nil {
		return Transaction{}
	}

	commit, err := persistence.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}
	return commitTransaction(commit)
}

// History lists up to limit commits starting at HEAD, newest first.
// A limit of zero or less lists everything.
func (persistence *Persistence) History(limit int) ([]Transaction, error) {
	if _, err := persistence.repo.Head(); err != nil {
		return nil, nil
	}

	cIter, err := persistence.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer cIter.Close()

	var transactions []Transaction
	for {
		c, err := cIter.Next()
		if err != nil {
			break
		}
		transactions = append(transactions, commitTransaction(c))
		if limit > 0 && len(transactions) >= limit {
			break
		}
	}
	return transactions, nil
}
