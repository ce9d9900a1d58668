package browser

// Scripts evaluated in the product page. They only locate elements and act on
// them; parsing of review markup happens in Go.

const revealReviewsTabScript = `() => {
	const tabs = Array.from(document.querySelectorAll('a, button, div[role="tab"]'));
	for (const tab of tabs) {
		const text = (tab.textContent || '').toLowerCase();
		if (text.includes('отзыв') || text.includes('фото') || text.includes('видео')) {
			tab.click();
			return true;
		}
	}
	return false;
}`

const openFirstReviewScript = `() => {
	const buttons = document.querySelectorAll('button, a, div[role="button"]');
	for (const btn of buttons) {
		if (btn.querySelector('img[src*="cover"], img[src*="photo"], img[src*="video"]')) {
			btn.click();
			return true;
		}
	}

	const media = document.querySelectorAll('img[src*="ozon"], video');
	if (media.length > 0) {
		const parent = media[0].closest('button, a, div[role="button"]');
		if (parent) {
			parent.click();
			return true;
		}
	}
	return false;
}`

const clickNextScript = `() => {
	const buttons = Array.from(document.querySelectorAll('button')).filter(btn => {
		const style = window.getComputedStyle(btn);
		return style.display !== 'none' && style.visibility !== 'hidden' && btn.offsetParent !== null;
	});

	const next = buttons.find(btn => {
		const label = (btn.getAttribute('aria-label') || '').toLowerCase();
		return label.includes('next') || label.includes('след');
	});
	if (next) {
		next.click();
		return true;
	}

	const arrows = buttons.filter(btn => {
		const svg = btn.querySelector('svg');
		if (!svg) return false;
		const html = svg.innerHTML.toLowerCase();
		return html.includes('arrow') || html.includes('right') || html.includes('chevron');
	});
	if (arrows.length > 0) {
		arrows[arrows.length - 1].click();
		return true;
	}
	return false;
}`

// activeReviewScript picks the review shown in the viewer (the right-hand
// pane) and reads the badge rating, which is laid out outside the review
// element and can only be recognised by position and colour.
const activeReviewScript = `() => {
	const all = document.querySelectorAll('[data-review-uuid]');
	if (all.length === 0) {
		return {found: false};
	}

	let review = all[all.length - 1];
	if (review.getBoundingClientRect().left < 900) {
		for (const r of all) {
			if (r.getBoundingClientRect().left > 900) {
				review = r;
				break;
			}
		}
	}

	const stars = [];
	for (const svg of document.querySelectorAll('svg')) {
		const rect = svg.getBoundingClientRect();
		if (rect.top < 60 || rect.top > 100 || rect.width < 15 || rect.width > 25 || rect.height < 15 || rect.height > 25) {
			continue;
		}
		const color = window.getComputedStyle(svg).color;
		const filled = color.includes('255, 165, 0');
		if (filled || color.includes('0, 26, 52')) {
			stars.push({left: rect.left, top: rect.top, filled: filled});
		}
	}
	stars.sort((a, b) => a.left - b.left);

	let rating = 0;
	for (let i = 0; i + 5 <= stars.length; i++) {
		const group = stars.slice(i, i + 5);
		const tops = group.map(s => s.top);
		let gap = 0;
		for (let j = 1; j < group.length; j++) {
			gap += group[j].left - group[j - 1].left;
		}
		gap /= group.length - 1;
		if (Math.max(...tops) - Math.min(...tops) < 5 && gap >= 18 && gap <= 22) {
			rating = group.filter(s => s.filled).length;
			break;
		}
	}

	return {
		found: true,
		uuid: review.getAttribute('data-review-uuid') || '',
		html: review.outerHTML,
		rating: rating,
	};
}`
