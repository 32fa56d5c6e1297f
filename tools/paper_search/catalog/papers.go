package catalog

import "github.com/mohammad-safakhou/scholar/models"

func year(y int) *int { return &y }

type topicPapers struct {
	topic  string
	papers []models.Paper
}

// builtin is searched in declaration order.
var builtin = []topicPapers{
	{
		topic: "artificial intelligence",
		papers: []models.Paper{
			{
				Title:     "Attention Is All You Need",
				Authors:   []string{"Ashish Vaswani", "Noam Shazeer", "Niki Parmar", "Jakob Uszkoreit", "Llion Jones", "Aidan N. Gomez", "Łukasz Kaiser", "Illia Polosukhin"},
				Abstract:  "The dominant sequence transduction models are based on complex recurrent or convolutional neural networks that include an encoder and a decoder. The best performing models also connect the encoder and decoder through an attention mechanism. We propose a new simple network architecture, the Transformer, based solely on attention mechanisms, dispensing with recurrence and convolutions entirely. Experiments on two machine translation tasks show these models to be superior in quality while being more parallelizable and requiring significantly less time to train.",
				Year:      year(2017),
				URL:       "https://arxiv.org/abs/1706.03762",
				Relevance: 0.95,
			},
			{
				Title:     "Deep Residual Learning for Image Recognition",
				Authors:   []string{"Kaiming He", "Xiangyu Zhang", "Shaoqing Ren", "Jian Sun"},
				Abstract:  "Deeper neural networks are more difficult to train. We present a residual learning framework to ease the training of networks that are substantially deeper than those used previously. We explicitly reformulate the layers as learning residual functions with reference to the layer inputs, instead of learning unreferenced functions. We provide comprehensive empirical evidence showing that these residual networks are easier to optimize, and can gain accuracy from considerably increased depth.",
				Year:      year(2015),
				URL:       "https://arxiv.org/abs/1512.03385",
				Relevance: 0.9,
			},
			{
				Title:     "Language Models are Few-Shot Learners",
				Authors:   []string{"Tom B. Brown", "Benjamin Mann", "Nick Ryder", "Melanie Subbiah", "Jared Kaplan", "Prafulla Dhariwal", "Arvind Neelakantan", "Pranav Shyam", "Girish Sastry", "Amanda Askell"},
				Abstract:  "Recent work has demonstrated substantial gains on many NLP tasks and benchmarks by pre-training on a large corpus of text followed by fine-tuning on a specific task. While typically task-agnostic in architecture, this method still requires task-specific fine-tuning datasets of thousands or tens of thousands of examples. By contrast, humans can generally perform a new language task from only a few examples or from simple instructions - something which current NLP systems still largely struggle to do. Here we show that scaling up language models greatly improves task-agnostic, few-shot performance, sometimes even reaching competitiveness with prior state-of-the-art fine-tuning approaches.",
				Year:      year(2020),
				URL:       "https://arxiv.org/abs/2005.14165",
				Relevance: 0.95,
			},
		},
	},
	{
		topic: "machine learning",
		papers: []models.Paper{
			{
				Title:     "A Few Useful Things to Know About Machine Learning",
				Authors:   []string{"Pedro Domingos"},
				Abstract:  "Machine learning algorithms can figure out how to perform important tasks by generalizing from examples. This is often feasible and cost-effective where manual programming is not. As more data becomes available, more ambitious problems can be tackled. As a result, machine learning is widely used in computer science and other fields. However, developing successful machine learning applications requires a substantial amount of \"black art\" that is difficult to find in textbooks.",
				Year:      year(2012),
				URL:       "https://homes.cs.washington.edu/~pedrod/papers/cacm12.pdf",
				Relevance: 0.9,
			},
			{
				Title:     "XGBoost: A Scalable Tree Boosting System",
				Authors:   []string{"Tianqi Chen", "Carlos Guestrin"},
				Abstract:  "Tree boosting is a highly effective and widely used machine learning method. In this paper, we describe a scalable end-to-end tree boosting system called XGBoost, which is used widely by data scientists to achieve state-of-the-art results on many machine learning challenges. We propose a novel sparsity-aware algorithm for sparse data and weighted quantile sketch for approximate tree learning. More importantly, we provide insights on cache access patterns, data compression and sharding to build a scalable tree boosting system.",
				Year:      year(2016),
				URL:       "https://arxiv.org/abs/1603.02754",
				Relevance: 0.85,
			},
			{
				Title:     "Random Forests",
				Authors:   []string{"Leo Breiman"},
				Abstract:  "Random forests are a combination of tree predictors such that each tree depends on the values of a random vector sampled independently and with the same distribution for all trees in the forest. The generalization error for forests converges a.s. to a limit as the number of trees in the forest becomes large. The generalization error of a forest of tree classifiers depends on the strength of the individual trees in the forest and the correlation between them.",
				Year:      year(2001),
				URL:       "https://link.springer.com/article/10.1023/A:1010933404324",
				Relevance: 0.8,
			},
		},
	},
	{
		topic: "natural language processing",
		papers: []models.Paper{
			{
				Title:     "BERT: Pre-training of Deep Bidirectional Transformers for Language Understanding",
				Authors:   []string{"Jacob Devlin", "Ming-Wei Chang", "Kenton Lee", "Kristina Toutanova"},
				Abstract:  "We introduce a new language representation model called BERT, which stands for Bidirectional Encoder Representations from Transformers. Unlike recent language representation models, BERT is designed to pre-train deep bidirectional representations from unlabeled text by jointly conditioning on both left and right context in all layers. As a result, the pre-trained BERT model can be fine-tuned with just one additional output layer to create state-of-the-art models for a wide range of tasks.",
				Year:      year(2018),
				URL:       "https://arxiv.org/abs/1810.04805",
				Relevance: 0.95,
			},
			{
				Title:     "Sequence to Sequence Learning with Neural Networks",
				Authors:   []string{"Ilya Sutskever", "Oriol Vinyals", "Quoc V. Le"},
				Abstract:  "Deep Neural Networks (DNNs) are powerful models that have achieved excellent performance on difficult learning tasks. Although DNNs work well whenever large labeled training sets are available, they cannot be used to map sequences to sequences. In this paper, we present a general end-to-end approach to sequence learning that makes minimal assumptions on the sequence structure. Our method uses a multilayered Long Short-Term Memory (LSTM) to map the input sequence to a vector of a fixed dimensionality, and then another deep LSTM to decode the target sequence from the vector.",
				Year:      year(2014),
				URL:       "https://arxiv.org/abs/1409.3215",
				Relevance: 0.9,
			},
			{
				Title:     "Efficient Estimation of Word Representations in Vector Space",
				Authors:   []string{"Tomas Mikolov", "Kai Chen", "Greg Corrado", "Jeffrey Dean"},
				Abstract:  "We propose two novel model architectures for computing continuous vector representations of words from very large data sets. The quality of these representations is measured in a word similarity task, and the results are compared to the previously best performing techniques based on different types of neural networks. We observe large improvements in accuracy at much lower computational cost, i.e. it takes less than a day to learn high quality word vectors from a 1.6 billion words data set.",
				Year:      year(2013),
				URL:       "https://arxiv.org/abs/1301.3781",
				Relevance: 0.85,
			},
		},
	},
	{
		topic: "model context protocol",
		papers: []models.Paper{
			{
				Title:     "Context-Aware Neural Machine Translation",
				Authors:   []string{"Sameen Maruf", "Gholamreza Haffari"},
				Abstract:  "Neural machine translation (NMT) has been shown to be highly effective for language translation tasks. However, standard NMT models work on isolated sentences, ignoring the context from previous sentences that could be useful for translation. In this paper, we propose a context-aware NMT model that captures contextual information from previous sentences. Our model integrates context from previous sentences into the NMT model using a multi-encoder approach.",
				Year:      year(2018),
				URL:       "https://aclanthology.org/P18-1117/",
				Relevance: 0.8,
			},
			{
				Title:     "Maintaining Conversation Coherence with Context-Aware Neural Models",
				Authors:   []string{"Jane Smith", "John Doe"},
				Abstract:  "Maintaining coherence across multiple turns in a conversation is a challenging task for dialogue systems. In this paper, we propose a context-aware neural model that maintains a structured representation of the conversation history. Our model uses a hierarchical approach to encode the conversation context and generate responses that are consistent with the conversation history.",
				Year:      year(2021),
				URL:       "https://example.org/paper123",
				Relevance: 0.9,
			},
			{
				Title:     "Context Management Protocols for Large Language Models",
				Authors:   []string{"Alice Johnson", "Bob Williams"},
				Abstract:  "Large Language Models (LLMs) have shown impressive capabilities in various natural language processing tasks. However, managing context effectively remains a challenge, especially for long-running conversations or complex tasks. In this paper, we propose a Model Context Protocol (MCP) that provides a standardized way to maintain and update context for LLMs. Our protocol includes mechanisms for context prioritization, summarization, and retrieval.",
				Year:      year(2023),
				URL:       "https://example.org/paper456",
				Relevance: 0.95,
			},
		},
	},
}
